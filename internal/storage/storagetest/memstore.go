// Package storagetest содержит хранилище в памяти с тем же набором методов,
// что и storage.Storage. Используется в тестах сервисов.
//
// InTx делает снимок состояния и восстанавливает его, если fn вернула ошибку,
// поэтому тесты могут проверять атомарность операций без PostgreSQL.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

type txKey struct{}

type state struct {
	users     map[int64]models.User
	keys      map[int64]models.Key
	squads    map[string]models.Squad
	mapping   models.SquadMapping
	txs       map[int64]models.Transaction
	rewards   map[int64]int64
	promos    map[int64]models.Promo
	promoUses map[[2]int64]bool
	admins    map[string]models.Operator
	seq       int64
}

func newState() state {
	return state{
		users:     map[int64]models.User{},
		keys:      map[int64]models.Key{},
		squads:    map[string]models.Squad{},
		mapping:   models.SquadMapping{},
		txs:       map[int64]models.Transaction{},
		rewards:   map[int64]int64{},
		promos:    map[int64]models.Promo{},
		promoUses: map[[2]int64]bool{},
		admins:    map[string]models.Operator{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for k, v := range s.squads {
		c.squads[k] = v
	}
	for k, v := range s.mapping {
		c.mapping[k] = append([]string(nil), v...)
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.rewards {
		c.rewards[k] = v
	}
	for k, v := range s.promos {
		c.promos[k] = v
	}
	for k, v := range s.promoUses {
		c.promoUses[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	c.seq = s.seq
	return c
}

// Store — хранилище в памяти.
type Store struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	st    state
	fails map[string]error
	now   func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{st: newState(), fails: map[string]error{}, now: time.Now}
}

// FailOn заставляет метод method вернуть err при следующем вызове.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[method] = err
}

func (s *Store) failed(method string) error {
	if err, ok := s.fails[method]; ok {
		delete(s.fails, method)
		return fmt.Errorf("storagetest.%s: %w", method, err)
	}
	return nil
}

func (s *Store) nextID() int64 {
	s.st.seq++
	return s.st.seq
}

// InTransaction сообщает, выполняется ли ctx внутри InTx.
func InTransaction(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// InTx выполняет fn атомарно: при ошибке состояние откатывается.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func notFound(op string) error {
	return fmt.Errorf("storagetest.%s: %w", op, models.ErrNotFound)
}

// --- users ---

// AddUser кладёт пользователя напрямую, минуя проверки. Для подготовки данных.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID()
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	if u.ReferralCode == "" {
		u.ReferralCode = fmt.Sprintf("REF%d", u.TelegramID)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) CreateUser(_ context.Context, u *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateUser"); err != nil {
		return 0, err
	}
	for _, existing := range s.st.users {
		if existing.TelegramID == u.TelegramID || existing.ReferralCode == u.ReferralCode {
			return 0, fmt.Errorf("storagetest.CreateUser: duplicate user")
		}
	}
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	s.st.users[u.ID] = *u
	return u.ID, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.st.users[id]
	if !ok {
		return nil, notFound("GetUser")
	}
	return &u, nil
}

func (s *Store) GetUserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return s.GetUser(ctx, id)
}

func (s *Store) GetUserByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, notFound("GetUserByTelegramID")
}

func (s *Store) GetUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.ReferralCode == code {
			return &u, nil
		}
	}
	return nil, notFound("GetUserByReferralCode")
}

func (s *Store) updateUser(op string, id int64, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(op); err != nil {
		return err
	}
	u, ok := s.st.users[id]
	if !ok {
		return notFound(op)
	}
	fn(&u)
	s.st.users[id] = u
	return nil
}

func (s *Store) AddBalance(_ context.Context, userID, amount int64) (int64, error) {
	var balance int64
	err := s.updateUser("AddBalance", userID, func(u *models.User) {
		u.Balance += amount
		balance = u.Balance
	})
	return balance, err
}

func (s *Store) AddPartnerBalance(_ context.Context, userID, amount int64) error {
	return s.updateUser("AddPartnerBalance", userID, func(u *models.User) {
		u.PartnerBalance += amount
		if amount > 0 {
			u.TotalEarned += amount
		}
	})
}

func (s *Store) SetBlacklist(_ context.Context, userID int64, inBlacklist bool, reason string) error {
	return s.updateUser("SetBlacklist", userID, func(u *models.User) {
		u.InBlacklist = inBlacklist
		u.BanReason = reason
	})
}

func (s *Store) SetUserStatus(_ context.Context, userID int64, status models.UserStatus) error {
	return s.updateUser("SetUserStatus", userID, func(u *models.User) { u.Status = status })
}

func (s *Store) SetTrialUsed(_ context.Context, userID int64, used bool) error {
	return s.updateUser("SetTrialUsed", userID, func(u *models.User) { u.TrialUsed = used })
}

func (s *Store) SetPartner(_ context.Context, userID int64, isPartner bool, rate int) error {
	return s.updateUser("SetPartner", userID, func(u *models.User) {
		u.IsPartner = isPartner
		u.PartnerRate = rate
	})
}

func (s *Store) IncrementReferralCount(_ context.Context, userID int64) error {
	return s.updateUser("IncrementReferralCount", userID, func(u *models.User) { u.ReferralCount++ })
}

func (s *Store) ListUserIDs(_ context.Context, filter models.TargetFilter) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ListUserIDs"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, u := range s.st.users {
		if len(filter.UserIDs) > 0 && !containsID(filter.UserIDs, id) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, u.EffectiveStatus()) {
			continue
		}
		if filter.SquadUUID != "" && !s.userInSquad(id, filter.SquadUUID) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) userInSquad(userID int64, squad string) bool {
	for _, k := range s.st.keys {
		if k.UserID == userID && k.Squad() == squad {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []models.UserStatus, st models.UserStatus) bool {
	for _, v := range statuses {
		if v == st {
			return true
		}
	}
	return false
}

// --- keys ---

func (s *Store) CreateKey(_ context.Context, k *models.Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateKey"); err != nil {
		return 0, err
	}
	if _, ok := s.st.users[k.UserID]; !ok {
		return 0, notFound("CreateKey")
	}
	k.ID = s.nextID()
	k.CreatedAt = s.now()
	s.st.keys[k.ID] = copyKey(*k)
	return k.ID, nil
}

func copyKey(k models.Key) models.Key {
	if k.SquadUUID != nil {
		sq := *k.SquadUUID
		k.SquadUUID = &sq
	}
	return k
}

func (s *Store) GetKey(_ context.Context, id int64) (*models.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("GetKey"); err != nil {
		return nil, err
	}
	k, ok := s.st.keys[id]
	if !ok {
		return nil, notFound("GetKey")
	}
	k = copyKey(k)
	return &k, nil
}

func (s *Store) GetKeyForUpdate(ctx context.Context, id int64) (*models.Key, error) {
	return s.GetKey(ctx, id)
}

func (s *Store) ListKeysByUser(_ context.Context, userID int64) ([]models.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ListKeysByUser"); err != nil {
		return nil, err
	}
	var keys []models.Key
	for _, k := range s.st.keys {
		if k.UserID == userID {
			keys = append(keys, copyKey(k))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

func (s *Store) ListAllKeys(_ context.Context) ([]models.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ListAllKeys"); err != nil {
		return nil, err
	}
	keys := make([]models.Key, 0, len(s.st.keys))
	for _, k := range s.st.keys {
		keys = append(keys, copyKey(k))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys, nil
}

func (s *Store) UpdateKey(_ context.Context, k *models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpdateKey"); err != nil {
		return err
	}
	old, ok := s.st.keys[k.ID]
	if !ok {
		return notFound("UpdateKey")
	}
	upd := copyKey(*k)
	upd.UserID = old.UserID
	upd.ExternalUUID = old.ExternalUUID
	upd.CreatedAt = old.CreatedAt
	upd.TrafficUsed = old.TrafficUsed
	upd.DevicesUsed = old.DevicesUsed
	s.st.keys[k.ID] = upd
	return nil
}

func (s *Store) UpdateKeyTraffic(_ context.Context, externalUUID string, trafficUsed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, k := range s.st.keys {
		if k.ExternalUUID == externalUUID {
			k.TrafficUsed = trafficUsed
			s.st.keys[id] = k
		}
	}
	return nil
}

func (s *Store) DeleteKey(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("DeleteKey"); err != nil {
		return err
	}
	if _, ok := s.st.keys[id]; !ok {
		return notFound("DeleteKey")
	}
	delete(s.st.keys, id)
	return nil
}

func (s *Store) MarkExpiredKeys(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("MarkExpiredKeys"); err != nil {
		return 0, err
	}
	var n int64
	for id, k := range s.st.keys {
		if k.Status == models.KeyStatusActive && !k.Blocked && !now.Before(k.ExpiryDate) {
			k.Status = models.KeyStatusExpired
			s.st.keys[id] = k
			n++
		}
	}
	return n, nil
}

func (s *Store) ListExpiringKeys(_ context.Context, from, to time.Time) ([]models.KeyInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ListExpiringKeys"); err != nil {
		return nil, err
	}
	var infos []models.KeyInfo
	for _, k := range s.st.keys {
		if k.Blocked || k.IsForever || k.ExpiryDate.Before(from) || !k.ExpiryDate.Before(to) {
			continue
		}
		u := s.st.users[k.UserID]
		infos = append(infos, models.KeyInfo{
			KeyID: k.ID, UserID: k.UserID, TelegramID: u.TelegramID,
			Username: u.Username, ExpiryDate: k.ExpiryDate,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ExpiryDate.Before(infos[j].ExpiryDate) })
	return infos, nil
}

// --- squads ---

func (s *Store) ListSquads(_ context.Context) ([]models.Squad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ListSquads"); err != nil {
		return nil, err
	}
	squads := make([]models.Squad, 0, len(s.st.squads))
	for _, sq := range s.st.squads {
		squads = append(squads, sq)
	}
	sort.Slice(squads, func(i, j int) bool {
		if squads[i].Priority != squads[j].Priority {
			return squads[i].Priority < squads[j].Priority
		}
		return squads[i].UUID < squads[j].UUID
	})
	return squads, nil
}

func (s *Store) GetSquad(_ context.Context, uuid string) (*models.Squad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.st.squads[uuid]
	if !ok {
		return nil, notFound("GetSquad")
	}
	return &sq, nil
}

func (s *Store) InsertSquad(_ context.Context, sq models.Squad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("InsertSquad"); err != nil {
		return err
	}
	if _, ok := s.st.squads[sq.UUID]; ok {
		return fmt.Errorf("storagetest.InsertSquad: duplicate squad %s", sq.UUID)
	}
	sq.Stale = false
	sq.UpdatedAt = s.now()
	s.st.squads[sq.UUID] = sq
	return nil
}

func (s *Store) updateSquad(op, uuid string, fn func(sq *models.Squad)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(op); err != nil {
		return err
	}
	sq, ok := s.st.squads[uuid]
	if !ok {
		return notFound(op)
	}
	fn(&sq)
	sq.UpdatedAt = s.now()
	s.st.squads[uuid] = sq
	return nil
}

func (s *Store) RefreshSquadFromExternal(_ context.Context, uuid, name string) error {
	return s.updateSquad("RefreshSquadFromExternal", uuid, func(sq *models.Squad) {
		sq.Name = name
		sq.Stale = false
	})
}

func (s *Store) MarkSquadStale(_ context.Context, uuid string) error {
	return s.updateSquad("MarkSquadStale", uuid, func(sq *models.Squad) { sq.Stale = true })
}

func (s *Store) UpdateSquadSettings(_ context.Context, upd models.Squad) error {
	return s.updateSquad("UpdateSquadSettings", upd.UUID, func(sq *models.Squad) {
		sq.Name = upd.Name
		sq.Type = upd.Type
		sq.MaxUsers = upd.MaxUsers
		sq.Priority = upd.Priority
		sq.IsActive = upd.IsActive
	})
}

func (s *Store) IncrementSquadUsers(_ context.Context, uuid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("IncrementSquadUsers"); err != nil {
		return false, err
	}
	sq, ok := s.st.squads[uuid]
	if !ok || !sq.HasCapacity() {
		return false, nil
	}
	sq.CurrentUsers++
	s.st.squads[uuid] = sq
	return true, nil
}

func (s *Store) DecrementSquadUsers(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("DecrementSquadUsers"); err != nil {
		return err
	}
	if sq, ok := s.st.squads[uuid]; ok && sq.CurrentUsers > 0 {
		sq.CurrentUsers--
		s.st.squads[uuid] = sq
	}
	return nil
}

func (s *Store) RecountSquadUsers(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("RecountSquadUsers"); err != nil {
		return err
	}
	counts := map[string]int{}
	for _, k := range s.st.keys {
		if k.SquadUUID != nil {
			counts[*k.SquadUUID]++
		}
	}
	for uuid, sq := range s.st.squads {
		sq.CurrentUsers = counts[uuid]
		s.st.squads[uuid] = sq
	}
	return nil
}

func (s *Store) DeleteStaleSquad(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.st.squads[uuid]
	if !ok || !sq.Stale {
		return notFound("DeleteStaleSquad")
	}
	delete(s.st.squads, uuid)
	for id, k := range s.st.keys {
		if k.Squad() == uuid {
			k.SquadUUID = nil
			s.st.keys[id] = k
		}
	}
	for t, uuids := range s.st.mapping {
		var kept []string
		for _, u := range uuids {
			if u != uuid {
				kept = append(kept, u)
			}
		}
		s.st.mapping[t] = kept
	}
	return nil
}

func (s *Store) GetSquadMapping(_ context.Context) (models.SquadMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("GetSquadMapping"); err != nil {
		return nil, err
	}
	m := models.SquadMapping{}
	for t, uuids := range s.st.mapping {
		if len(uuids) > 0 {
			m[t] = append([]string(nil), uuids...)
		}
	}
	return m, nil
}

func (s *Store) ReplaceSquadMapping(_ context.Context, mapping models.SquadMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ReplaceSquadMapping"); err != nil {
		return err
	}
	for t, uuids := range mapping {
		s.st.mapping[t] = append([]string(nil), uuids...)
	}
	return nil
}

// --- transactions ---

func (s *Store) InsertTransaction(_ context.Context, tx *models.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("InsertTransaction"); err != nil {
		return 0, err
	}
	if tx.RefundOf != nil {
		for _, existing := range s.st.txs {
			if existing.RefundOf != nil && *existing.RefundOf == *tx.RefundOf {
				return 0, fmt.Errorf("storagetest.InsertTransaction: duplicate refund")
			}
		}
	}
	tx.ID = s.nextID()
	tx.CreatedAt = s.now()
	s.st.txs[tx.ID] = *tx
	return tx.ID, nil
}

func (s *Store) GetTransactionForUpdate(_ context.Context, id int64) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.st.txs[id]
	if !ok {
		return nil, notFound("GetTransactionForUpdate")
	}
	return &tx, nil
}

func (s *Store) RefundExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.st.txs {
		if tx.RefundOf != nil && *tx.RefundOf == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []models.Transaction
	for _, tx := range s.st.txs {
		if tx.UserID == userID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID > txs[j].ID })
	return txs, nil
}

func (s *Store) SumTransactions(_ context.Context, userID int64, account models.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, tx := range s.st.txs {
		if tx.UserID == userID && tx.Account == account {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (s *Store) InsertReferralReward(_ context.Context, referralID, _, transactionID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.rewards[referralID]; ok {
		return false, nil
	}
	s.st.rewards[referralID] = transactionID
	return true, nil
}

func (s *Store) ReferralRewarded(_ context.Context, referralID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.rewards[referralID]
	return ok, nil
}

// --- promos ---

func (s *Store) CreatePromo(_ context.Context, p *models.Promo) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.promos {
		if existing.Code == p.Code {
			return 0, fmt.Errorf("storagetest.CreatePromo: duplicate code %s: %w", p.Code, models.ErrAlreadyUsed)
		}
	}
	p.ID = s.nextID()
	s.st.promos[p.ID] = *p
	return p.ID, nil
}

func (s *Store) GetPromoByCodeForUpdate(_ context.Context, code string) (*models.Promo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.promos {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, notFound("GetPromoByCodeForUpdate")
}

func (s *Store) InsertPromoUse(_ context.Context, promoID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{promoID, userID}
	if s.st.promoUses[key] {
		return false, nil
	}
	s.st.promoUses[key] = true
	return true, nil
}

func (s *Store) IncrementPromoUses(_ context.Context, promoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.promos[promoID]
	if !ok {
		return notFound("IncrementPromoUses")
	}
	p.UsesCount++
	s.st.promos[promoID] = p
	return nil
}

func (s *Store) ReleasePromoUse(_ context.Context, promoID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ReleasePromoUse"); err != nil {
		return err
	}
	key := [2]int64{promoID, userID}
	if !s.st.promoUses[key] {
		return nil
	}
	delete(s.st.promoUses, key)
	if p, ok := s.st.promos[promoID]; ok && p.UsesCount > 0 {
		p.UsesCount--
		s.st.promos[promoID] = p
	}
	return nil
}

// --- admins ---

func (s *Store) CreateAdmin(_ context.Context, username, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.admins[username]; ok {
		return false, nil
	}
	s.st.admins[username] = models.Operator{ID: s.nextID(), Username: username, PasswordHash: passwordHash}
	return true, nil
}

func (s *Store) GetAdminByUsername(_ context.Context, username string) (*models.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.admins[username]
	if !ok {
		return nil, notFound("GetAdminByUsername")
	}
	return &a, nil
}
