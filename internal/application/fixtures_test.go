package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

// In-memory port implementations backing the service tests.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func (r *memUserRepo) Create(_ context.Context, p ports.CreateUserParams) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == p.Username {
			return domain.User{}, domain.ErrConflict
		}
	}
	user := domain.User{
		UserID:       uuid.New(),
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		OrgID:        p.OrgID,
		IsActive:     true,
		CreatedAt:    p.CreatedAtUTC,
		UpdatedAt:    p.CreatedAtUTC,
	}
	r.users[user.UserID] = user
	return user, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memUserRepo) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) CountByOrg(_ context.Context, orgID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.OrgID == orgID && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type memOrgRepo struct {
	mu   sync.Mutex
	orgs map[uuid.UUID]domain.Organization
}

func (r *memOrgRepo) GetByID(_ context.Context, orgID uuid.UUID) (domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return domain.Organization{}, domain.ErrNotFound
	}
	return org, nil
}

func (r *memOrgRepo) Create(_ context.Context, org domain.Organization) (domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org.OrgID == uuid.Nil {
		org.OrgID = uuid.New()
	}
	r.orgs[org.OrgID] = org
	return org, nil
}

type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]domain.Device
}

func (r *memDeviceRepo) Create(_ context.Context, p ports.CreateDeviceParams) (domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device := domain.Device{
		DeviceID:     uuid.New(),
		OrgID:        p.OrgID,
		Name:         p.Name,
		Model:        p.Model,
		FirmwareVer:  p.FirmwareVer,
		RegisteredAt: p.RegisteredAtUTC,
	}
	r.devices[device.DeviceID] = device
	return device, nil
}

func (r *memDeviceRepo) GetByID(_ context.Context, deviceID uuid.UUID) (domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return domain.Device{}, domain.ErrNotFound
	}
	return d, nil
}

func (r *memDeviceRepo) ListByOrg(_ context.Context, orgID uuid.UUID, limit, offset int) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Device
	for _, d := range r.devices {
		if d.OrgID == orgID {
			out = append(out, d)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memDeviceRepo) Delete(_ context.Context, deviceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[deviceID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.devices, deviceID)
	return nil
}

func (r *memDeviceRepo) CountByOrg(_ context.Context, orgID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.devices {
		if d.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

type memLogRepo struct {
	mu      sync.Mutex
	entries []domain.DeviceLog
}

func (r *memLogRepo) Insert(_ context.Context, entry domain.DeviceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.DeviceID == entry.DeviceID && e.Checksum == entry.Checksum {
			return domain.ErrDuplicateLog
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memLogRepo) ExistsByChecksum(_ context.Context, deviceID uuid.UUID, checksum string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.DeviceID == deviceID && e.Checksum == checksum {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLogRepo) ListByDevice(_ context.Context, deviceID uuid.UUID, limit, offset int) ([]domain.DeviceLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DeviceLog
	for _, e := range r.entries {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLogRepo) StoredBytesByOrg(_ context.Context, orgID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, e := range r.entries {
		if e.OrgID == orgID {
			total += e.SizeBytes
		}
	}
	return total, nil
}

type memKeyStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]domain.DeviceKey
}

func (s *memKeyStore) Get(_ context.Context, deviceID uuid.UUID) (domain.DeviceKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[deviceID]
	if !ok {
		return domain.DeviceKey{}, domain.ErrNotFound
	}
	return key, nil
}

func (s *memKeyStore) Set(_ context.Context, deviceID uuid.UUID, key []byte, rotatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[deviceID] = domain.DeviceKey{DeviceID: deviceID, Key: key, RotatedAt: rotatedAt}
	return nil
}

func (s *memKeyStore) Delete(_ context.Context, deviceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, deviceID)
	return nil
}

type memWebhookRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*domain.WebhookSubscription
}

func (r *memWebhookRepo) Create(_ context.Context, sub domain.WebhookSubscription) (domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.SubscriptionID] = &sub
	return sub, nil
}

func (r *memWebhookRepo) GetByID(_ context.Context, id uuid.UUID) (domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return domain.WebhookSubscription{}, domain.ErrNotFound
	}
	return *sub, nil
}

func (r *memWebhookRepo) ListActiveByOrgEvent(_ context.Context, orgID uuid.UUID, event string) ([]domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.OrgID == orgID && sub.IsActive && sub.Subscribed(event) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *memWebhookRepo) ListByOrg(_ context.Context, orgID uuid.UUID) ([]domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.OrgID == orgID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *memWebhookRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *memWebhookRepo) RecordSuccess(_ context.Context, id uuid.UUID, triggeredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[id]; ok {
		sub.FailureCount = 0
		sub.LastTriggeredAt = &triggeredAt
	}
	return nil
}

func (r *memWebhookRepo) RecordFailure(_ context.Context, id uuid.UUID, disableAt int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	sub.FailureCount++
	if sub.FailureCount >= disableAt {
		sub.IsActive = false
	}
	return sub.FailureCount, nil
}

func (r *memWebhookRepo) Reactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.IsActive = true
	sub.FailureCount = 0
	return nil
}

// plainHasher avoids argon2 work in scenario tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(password, storedHash string) bool {
	return storedHash == "hashed:"+password
}

// staticTokens maps issued tokens back to identities without real signing.
type staticTokens struct {
	mu     sync.Mutex
	issued map[string]domain.Identity
}

func (t *staticTokens) Issue(identity domain.Identity) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	token := "token:" + identity.Username + ":" + uuid.NewString()
	t.issued[token] = identity
	return token, nil
}

func (t *staticTokens) Validate(token string) (domain.Identity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	identity, ok := t.issued[token]
	if !ok {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return identity, nil
}

func (t *staticTokens) HasRole(token string, minimum domain.Role) bool {
	identity, err := t.Validate(token)
	if err != nil {
		return false
	}
	return identity.Role.AtLeast(minimum)
}

// memTracker mirrors the production lockout contract without time handling.
type memTracker struct {
	mu          sync.Mutex
	counts      map[string]int
	locked      map[string]bool
	maxAttempts int
}

func newMemTracker(maxAttempts int) *memTracker {
	return &memTracker{
		counts:      make(map[string]int),
		locked:      make(map[string]bool),
		maxAttempts: maxAttempts,
	}
}

func (t *memTracker) IsLocked(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked[key]
}

func (t *memTracker) RecordFailure(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	if t.counts[key] >= t.maxAttempts {
		t.locked[key] = true
	}
}

func (t *memTracker) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, key)
	delete(t.locked, key)
}

func (t *memTracker) RemainingAttempts(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locked[key] {
		return 0
	}
	remaining := t.maxAttempts - t.counts[key]
	if remaining < 0 {
		return 0
	}
	return remaining
}

type dispatchedEvent struct {
	OrgID uuid.UUID
	Event string
	Data  map[string]any
}

// recordingDispatcher captures events instead of delivering them.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatchedEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, orgID uuid.UUID, event string, data map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dispatchedEvent{OrgID: orgID, Event: event, Data: data})
}

func (d *recordingDispatcher) byEvent(event string) []dispatchedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatchedEvent
	for _, e := range d.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc        *Service
	users      *memUserRepo
	orgs       *memOrgRepo
	devices    *memDeviceRepo
	logs       *memLogRepo
	keys       *memKeyStore
	webhooks   *memWebhookRepo
	tokens     *staticTokens
	tracker    *memTracker
	dispatcher *recordingDispatcher
	now        time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:      &memUserRepo{users: make(map[uuid.UUID]domain.User)},
		orgs:       &memOrgRepo{orgs: make(map[uuid.UUID]domain.Organization)},
		devices:    &memDeviceRepo{devices: make(map[uuid.UUID]domain.Device)},
		logs:       &memLogRepo{},
		keys:       &memKeyStore{keys: make(map[uuid.UUID]domain.DeviceKey)},
		webhooks:   &memWebhookRepo{subs: make(map[uuid.UUID]*domain.WebhookSubscription)},
		tokens:     &staticTokens{issued: make(map[string]domain.Identity)},
		tracker:    newMemTracker(5),
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(Dependencies{
		Users:      env.users,
		Orgs:       env.orgs,
		Devices:    env.devices,
		Logs:       env.logs,
		DeviceKeys: env.keys,
		Webhooks:   env.webhooks,
		Hasher:     plainHasher{},
		Tokens:     env.tokens,
		Logins:     env.tracker,
		Dispatcher: env.dispatcher,
		NowFn:      func() time.Time { return env.now },
	})
	return env
}

func (e *testEnv) addOrg(plan string, maxDevices, maxStorage, maxUsers int64) domain.Organization {
	org, _ := e.orgs.Create(context.Background(), domain.Organization{
		Name:            "org-" + strings.ToLower(plan),
		Plan:            plan,
		MaxDevices:      maxDevices,
		MaxStorageBytes: maxStorage,
		MaxUsers:        maxUsers,
		CreatedAt:       e.now,
	})
	return org
}

func (e *testEnv) addUser(username string, role domain.Role, orgID uuid.UUID, password string) domain.User {
	user, err := e.users.Create(context.Background(), ports.CreateUserParams{
		Username:     username,
		PasswordHash: "hashed:" + password,
		Role:         role,
		OrgID:        orgID,
		CreatedAtUTC: e.now,
	})
	if err != nil {
		panic(err)
	}
	return user
}

func (e *testEnv) addDevice(orgID uuid.UUID, name string) domain.Device {
	device, _ := e.devices.Create(context.Background(), ports.CreateDeviceParams{
		OrgID:           orgID,
		Name:            name,
		RegisteredAtUTC: e.now,
	})
	return device
}

func identityOf(user domain.User) domain.Identity {
	return domain.Identity{
		UserID:   user.UserID,
		Username: user.Username,
		Role:     user.Role,
		OrgID:    user.OrgID,
	}
}
