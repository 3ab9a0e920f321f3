package authentication

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamfive/lesson-booking-api/internal/user"
	"github.com/teamfive/lesson-booking-api/internal/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeUserService keeps users in memory; only the reads the token core needs do real work.
type fakeUserService struct {
	mu    sync.Mutex
	users map[uint]*user.User
	err   error
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{users: make(map[uint]*user.User)}
}

func (f *fakeUserService) add(id uint, email, password string, role *user.RoleType) *user.User {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := &user.User{Email: email, Username: email, Password: string(hashed)}
	u.ID = id
	if role != nil {
		u.Role = &user.Role{ID: uint(*role) + 1, RoleType: *role}
		u.RoleID = &u.Role.ID
	}
	f.mu.Lock()
	f.users[id] = u
	f.mu.Unlock()
	return u
}

func (f *fakeUserService) lookup(id uint) (*user.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	return u, ok
}

func (f *fakeUserService) CreateUser(context.Context, string, string, string) (*user.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) ReadUserByEmail(_ context.Context, email string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUserService) ReadUserByID(_ context.Context, id uint) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.lookup(id)
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserService) UpdateEmail(context.Context, uint, string) error    { return nil }
func (f *fakeUserService) UpdatePassword(context.Context, uint, string) error { return nil }
func (f *fakeUserService) UpdateLastSeen(context.Context, uint) error         { return nil }
func (f *fakeUserService) DeleteUser(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

// memoryRecordRepository serializes every operation behind one mutex, the in-memory
// equivalent of the owner row lock taken by the gorm repository.
type memoryRecordRepository struct {
	mu       sync.Mutex
	nextID   uint
	records  []*RefreshToken
	users    *fakeUserService
	writeErr error
}

func newMemoryRecordRepository(users *fakeUserService) *memoryRecordRepository {
	return &memoryRecordRepository{users: users}
}

func (r *memoryRecordRepository) ReadByTokenHash(_ context.Context, hash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.TokenHash == hash {
			cp := *rec
			if u, ok := r.users.lookup(rec.UserID); ok {
				cp.User = u
			}
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFoundByGivenToken
}

func (r *memoryRecordRepository) ListByUserID(_ context.Context, userID uint) ([]RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RefreshToken
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memoryRecordRepository) DeactivateByUserID(_ context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.deactivateLocked(userID)
	return nil
}

func (r *memoryRecordRepository) deactivateLocked(userID uint) {
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Active {
			rec.Active = false
			rec.UpdatedAt = time.Now()
		}
	}
}

func (r *memoryRecordRepository) Rotate(_ context.Context, record *RefreshToken, supersededHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	if _, ok := r.users.lookup(record.UserID); !ok {
		return ErrOwnerNotFound
	}
	if supersededHash != "" {
		var prior *RefreshToken
		for _, rec := range r.records {
			if rec.TokenHash == supersededHash && rec.UserID == record.UserID {
				prior = rec
			}
		}
		if prior == nil {
			return ErrRecordNotFoundByGivenToken
		}
		if !prior.Active {
			return ErrRecordInactive
		}
	}
	r.deactivateLocked(record.UserID)
	r.nextID++
	record.ID = r.nextID
	record.Active = true
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *memoryRecordRepository) activeCount(userID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Active {
			n++
		}
	}
	return n
}

func (r *memoryRecordRepository) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fixture struct {
	users   *fakeUserService
	records *memoryRecordRepository
	signer  *utils.TokenSigner
	service *authenticationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := utils.NewTokenSigner(&utils.JwtConfig{SecretKey: testSecret, Issuer: "lessons-api", Audience: "lessons-client"})
	require.NoError(t, err)
	users := newFakeUserService()
	records := newMemoryRecordRepository(users)
	svc := NewAuthenticationService(users, records, signer, zaptest.NewLogger(t), 24*time.Hour).(*authenticationService)
	return &fixture{users: users, records: records, signer: signer, service: svc}
}

func roleOf(rt user.RoleType) *user.RoleType { return &rt }

func TestGenerateAccessToken_EmbedsIDAndRole(t *testing.T) {
	f := newFixture(t)
	u := f.users.add(12, "teacher@example.com", "pw-irrelevant1", roleOf(user.Teacher))

	raw, err := f.service.GenerateAccessToken(u)
	require.NoError(t, err)

	claims, err := f.signer.ParseAccessToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "12", claims.Subject)
	assert.Equal(t, strconv.Itoa(int(user.Teacher)), claims.Roles)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestGenerateAccessToken_RequiresRole(t *testing.T) {
	f := newFixture(t)
	u := f.users.add(3, "norole@example.com", "pw-irrelevant1", nil)

	_, err := f.service.GenerateAccessToken(u)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestCreateTokensDto_LeavesExactlyOneActiveToken(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		tokens, err := f.service.CreateTokensDto(ctx, 1)
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, 1, f.records.activeCount(1))
	}
	assert.Equal(t, 4, f.records.size())

	list, err := f.records.ListByUserID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, list[len(list)-1].Active)
}

func TestCreateTokensDto_RefreshValueIs256BitBase64(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))

	a, err := f.service.CreateTokensDto(context.Background(), 1)
	require.NoError(t, err)
	b, err := f.service.CreateTokensDto(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, a.RefreshToken, 44)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}

func TestCreateTokensDto_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateTokensDto(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUnknownUser)

	f.users.add(5, "norole@example.com", "pw-irrelevant1", nil)
	_, err = f.service.CreateTokensDto(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Equal(t, 0, f.records.size())
}

func TestCreateTokensDto_StoreFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	f.records.writeErr = errors.New("connection reset")

	_, err := f.service.CreateTokensDto(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTokenStore)
}

func TestCreateTokensDto_ConcurrentCallsKeepOneActive(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.service.CreateTokensDto(context.Background(), 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.records.activeCount(1))
	assert.Equal(t, n, f.records.size())
}

func TestDoRefresh_UnknownTokenHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	_, err := f.service.CreateTokensDto(context.Background(), 1)
	require.NoError(t, err)
	before := f.records.size()

	tokens, err := f.service.DoRefresh(context.Background(), "bm90LWEtcmVhbC10b2tlbg==")
	assert.Nil(t, tokens)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, before, f.records.size())
	assert.Equal(t, 1, f.records.activeCount(1))

	_, err = f.service.DoRefresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestDoRefresh_RotatesAndDeactivatesPrior(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	ctx := context.Background()

	first, err := f.service.CreateTokensDto(ctx, 1)
	require.NoError(t, err)

	second, err := f.service.DoRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	prior, err := f.records.ReadByTokenHash(ctx, hashToken(first.RefreshToken))
	require.NoError(t, err)
	assert.False(t, prior.Active)

	current, err := f.records.ReadByTokenHash(ctx, hashToken(second.RefreshToken))
	require.NoError(t, err)
	assert.True(t, current.Active)
	assert.Equal(t, 1, f.records.activeCount(1))

	claims, err := f.signer.ParseAccessToken(second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
}

func TestDoRefresh_SupersededTokenIsRejectedAndRevokesSession(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	ctx := context.Background()

	first, err := f.service.CreateTokensDto(ctx, 1)
	require.NoError(t, err)
	_, err = f.service.DoRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = f.service.DoRefresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, 0, f.records.activeCount(1))
}

func TestDoRefresh_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	ctx := context.Background()

	tokens, err := f.service.CreateTokensDto(ctx, 1)
	require.NoError(t, err)

	f.service.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = f.service.DoRefresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestDoRefresh_OwnerGone(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	ctx := context.Background()

	tokens, err := f.service.CreateTokensDto(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.users.DeleteUser(ctx, 1))

	_, err = f.service.DoRefresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestDoRefresh_ConcurrentSameTokenSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	tokens, err := f.service.CreateTokensDto(context.Background(), 1)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.service.DoRefresh(context.Background(), tokens.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidRefreshToken)
	}
	assert.Equal(t, 1, success)
	assert.LessOrEqual(t, f.records.activeCount(1), 1)
}

func TestDeactivateTokensForUser_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "pw-irrelevant1", roleOf(user.Student))
	ctx := context.Background()
	_, err := f.service.CreateTokensDto(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, f.service.DeactivateTokensForUser(ctx, 1))
	require.NoError(t, f.service.DeactivateTokensForUser(ctx, 1))

	list, err := f.records.ListByUserID(ctx, 1)
	require.NoError(t, err)
	for _, rec := range list {
		assert.False(t, rec.Active)
	}

	f.records.writeErr = errors.New("disk full")
	assert.ErrorIs(t, f.service.DeactivateTokensForUser(ctx, 1), ErrTokenStore)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "cello-lessons1", roleOf(user.Student))
	ctx := context.Background()

	tokens, err := f.service.Login(ctx, "ana@example.com", "cello-lessons1")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)

	_, err = f.service.Login(ctx, "ana@example.com", "wrong-password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.service.Login(ctx, "nobody@example.com", "cello-lessons1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.users.err = errors.New("db down")
	_, err = f.service.Login(ctx, "ana@example.com", "cello-lessons1")
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.users.add(1, "ana@example.com", "cello-lessons1", roleOf(user.Student))
	ctx := context.Background()

	tokens, err := f.service.CreateTokensDto(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, tokens.RefreshToken))
	assert.Equal(t, 0, f.records.activeCount(1))

	assert.ErrorIs(t, f.service.Logout(ctx, tokens.RefreshToken), ErrInvalidRefreshToken)
	assert.ErrorIs(t, f.service.Logout(ctx, "unknown"), ErrInvalidRefreshToken)
}

func TestGetIDClaimFromHeader(t *testing.T) {
	f := newFixture(t)

	valid, err := f.signer.IssueAccessToken("31", int(user.Student))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"roles": "0"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	nonNumeric, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ana"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	negative, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "-4"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	numeric, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 31}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	fractional, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 31.5}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", -1},
		{"blank header", "   ", -1},
		{"empty credential", "Bearer", -1},
		{"too many parts", "Bearer a b", -1},
		{"garbage token", "Bearer not-a-token", -1},
		{"no identity claim", "Bearer " + noSub, -1},
		{"non numeric identity", "Bearer " + nonNumeric, -1},
		{"negative identity", "Bearer " + negative, -1},
		{"fractional numeric identity", "Bearer " + fractional, -1},
		{"numeric identity", "Bearer " + numeric, 31},
		{"well formed", "Bearer " + valid, 31},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.service.GetIDClaimFromHeader(tc.header))
		})
	}
}

func TestIDClaimFromHeader_DistinguishesFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.IDClaimFromHeader("")
	assert.ErrorIs(t, err, ErrAuthorizationMissing)

	_, err = f.service.IDClaimFromHeader("Bearer")
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = f.service.IDClaimFromHeader("Bearer x y")
	assert.ErrorIs(t, err, ErrAuthorizationMalformed)

	_, err = f.service.IDClaimFromHeader("Bearer garbage")
	assert.ErrorIs(t, err, ErrIdentityClaimInvalid)
}
