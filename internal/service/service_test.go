package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/repository"
	"warbler/internal/testutil"
	"warbler/pkg/redis"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type services struct {
	db       *gorm.DB
	users    *UserService
	messages *MessageService
	likes    *LikeService
	counts   *redis.LikeCountCache
	notifier *recordingNotifier
}

type recordingNotifier struct {
	mu     sync.Mutex
	events [][3]uint
}

func (n *recordingNotifier) NotifyLike(ownerID, messageID, likerID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, [3]uint{ownerID, messageID, likerID})
}

func newServices(t *testing.T) *services {
	t.Helper()

	gdb := testutil.NewTestDB(t)
	_, rdb := testutil.NewTestRedis(t)
	counts := redis.NewLikeCountCache(rdb, time.Minute)

	messageRepo := repository.NewMessageRepository(gdb)
	notifier := &recordingNotifier{}
	return &services{
		db:       gdb,
		users:    NewUserService(repository.NewUserRepository(gdb)),
		messages: NewMessageService(messageRepo, counts),
		likes:    NewLikeService(repository.NewLikeRepository(gdb), messageRepo, counts, notifier),
		counts:   counts,
		notifier: notifier,
	}
}

func likeRows(t *testing.T, gdb *gorm.DB, userID, messageID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&model.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).Count(&n).Error)
	return n
}

func TestSignup(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	u, err := s.users.Signup(ctx, SignupInput{Username: " alice ", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, model.DefaultImageURL, u.ImageURL)
	assert.Equal(t, model.DefaultHeaderImageURL, u.HeaderImageURL)
	assert.NotEqual(t, "secret1", u.PasswordHash)
}

func TestSignup_Validation(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, err := s.users.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    SignupInput
		field string
	}{
		{"missing username", SignupInput{Email: "x@example.com", Password: "secret1"}, "username"},
		{"long username", SignupInput{Username: strings.Repeat("a", 31), Email: "x@example.com", Password: "secret1"}, "username"},
		{"bad email", SignupInput{Username: "bob", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", SignupInput{Username: "bob", Email: "bob@example.com", Password: "123"}, "password"},
		{"bad image url", SignupInput{Username: "bob", Email: "bob@example.com", Password: "secret1", ImageURL: "nope"}, "image_url"},
		{"taken username", SignupInput{Username: "alice", Email: "new@example.com", Password: "secret1"}, "username"},
		{"taken email", SignupInput{Username: "carol", Email: "alice@example.com", Password: "secret1"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.users.Signup(ctx, tt.in)
			require.Error(t, err)
			var appErr *model.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, model.KindValidation, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")

	u, err := s.users.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, alice.ID, u.ID)

	u, err = s.users.Authenticate(ctx, "alice", "wrong-pass")
	assert.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.users.Authenticate(ctx, "ghost", "secret1")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUpdateProfile_IncorrectPasswordMutatesNothing(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")

	_, err := s.users.UpdateProfile(ctx, alice, ProfileInput{Username: "mallory", Bio: "hacked"}, "wrong-pass")
	assert.ErrorIs(t, err, model.ErrIncorrectPassword)

	fresh, err := s.users.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", fresh.Username)
	assert.Empty(t, fresh.Bio)
}

func TestUpdateProfile(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	testutil.CreateUser(t, s.db, "bob", "secret1")

	updated, err := s.users.UpdateProfile(ctx, alice, ProfileInput{Username: "alice2", Bio: "hello"}, "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.Equal(t, model.DefaultImageURL, updated.ImageURL)

	_, err = s.users.UpdateProfile(ctx, updated, ProfileInput{Username: "bob"}, "secret1")
	assert.True(t, model.IsKind(err, model.KindValidation))
}

func TestUpdateProfileVerified(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	guard := authz.NewGuard(s.users)

	_, err := s.users.UpdateProfileVerified(ctx, alice, ProfileInput{Bio: "forged"}, authz.CredentialProof{})
	assert.ErrorIs(t, err, model.ErrIncorrectPassword)

	denied := guard.Authorize(alice, authz.ActionEditProfile, authz.Target{User: alice, Credential: "wrong-pass"})
	_, err = s.users.UpdateProfileVerified(ctx, alice, ProfileInput{Bio: "forged"}, denied.Proof())
	assert.ErrorIs(t, err, model.ErrIncorrectPassword)

	fresh, err := s.users.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Bio)

	allowed := guard.Authorize(alice, authz.ActionEditProfile, authz.Target{User: alice, Credential: "secret1"})
	require.True(t, allowed.Allowed)
	updated, err := s.users.UpdateProfileVerified(ctx, alice, ProfileInput{Bio: "hello"}, allowed.Proof())
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)

	bob := testutil.CreateUser(t, s.db, "bob", "secret1")
	_, err = s.users.UpdateProfileVerified(ctx, bob, ProfileInput{Bio: "borrowed"}, allowed.Proof())
	assert.ErrorIs(t, err, model.ErrIncorrectPassword)
}

func TestDuplicateError_NamesCollidingField(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")

	tests := []struct {
		name            string
		username, email string
		excludeID       uint
		field           string
	}{
		{"email taken", "carol", "alice@example.com", 0, "email"},
		{"username taken", "alice", "carol@example.com", 0, "username"},
		{"collider already gone", "carol", "carol@example.com", 0, "username"},
		{"own email on profile edit", "carol", "alice@example.com", alice.ID, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.users.duplicateError(ctx, tt.username, tt.email, tt.excludeID)
			var appErr *model.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, model.KindValidation, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newServices(t)
	_, err := s.users.GetUser(context.Background(), 404)
	assert.True(t, model.IsKind(err, model.KindNotFound))
}

func TestCreateMessage(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")

	m, err := s.messages.CreateMessage(ctx, alice, "  hello world  ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", m.Text)
	assert.Equal(t, alice.ID, m.UserID)

	for _, text := range []string{"", "   ", strings.Repeat("x", model.MaxMessageLength+1)} {
		_, err := s.messages.CreateMessage(ctx, alice, text)
		var appErr *model.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, model.KindValidation, appErr.Kind)
		assert.Equal(t, "text", appErr.Field)
	}

	// 按字符计数
	_, err = s.messages.CreateMessage(ctx, alice, strings.Repeat("鸟", model.MaxMessageLength))
	assert.NoError(t, err)
}

func TestLike_ExactlyOnce(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	created, err := s.likes.Like(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.likes.Like(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, int64(1), likeRows(t, s.db, bob.ID, m.ID))
	require.Len(t, s.notifier.events, 1)
	assert.Equal(t, [3]uint{alice.ID, m.ID, bob.ID}, s.notifier.events[0])
}

func TestLike_ConcurrentSameActor(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.likes.Like(ctx, bob, m.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), likeRows(t, s.db, bob.ID, m.ID))
}

func TestLike_SelfLikeDenied(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	_, err := s.likes.Like(ctx, alice, m.ID)
	assert.ErrorIs(t, err, model.ErrSelfLike)
	assert.Zero(t, likeRows(t, s.db, alice.ID, m.ID))
}

func TestLike_MissingMessage(t *testing.T) {
	s := newServices(t)
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")

	_, err := s.likes.Like(context.Background(), bob, 9999)
	assert.True(t, model.IsKind(err, model.KindNotFound))
}

func TestUnlike_Idempotent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	_, err := s.likes.Like(ctx, bob, m.ID)
	require.NoError(t, err)

	removed, err := s.likes.Unlike(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.likes.Unlike(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Zero(t, likeRows(t, s.db, bob.ID, m.ID))
}

func TestDeleteMessage_CascadesLikes(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	for i := 0; i < 5; i++ {
		fan := testutil.CreateUser(t, s.db, gofakeit.Username()+string(rune('a'+i)), "secret1")
		_, err := s.likes.Like(ctx, fan, m.ID)
		require.NoError(t, err)
	}
	n, err := s.likes.LikeCount(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.NoError(t, s.messages.DeleteMessage(ctx, m.ID))

	var remaining int64
	require.NoError(t, s.db.Model(&model.Like{}).Where("message_id = ?", m.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	n, err = s.likes.LikeCount(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "cache invalidated by delete")

	err = s.messages.DeleteMessage(ctx, m.ID)
	assert.True(t, model.IsKind(err, model.KindNotFound))

	_, err = s.messages.GetMessage(ctx, m.ID)
	assert.True(t, model.IsKind(err, model.KindNotFound))
}

func TestLikeDuringDelete(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	var wg sync.WaitGroup
	wg.Add(2)
	var likeErr error
	go func() {
		defer wg.Done()
		_, likeErr = s.likes.Like(ctx, bob, m.ID)
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, s.messages.DeleteMessage(ctx, m.ID))
	}()
	wg.Wait()

	if likeErr != nil {
		assert.True(t, model.IsKind(likeErr, model.KindNotFound))
	}
	assert.Zero(t, likeRows(t, s.db, bob.ID, m.ID))
}

func TestLikesFor_Restartable(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")

	total := likesPageSize + 3
	for i := 0; i < total; i++ {
		m := testutil.CreateMessage(t, s.db, alice, gofakeit.Sentence(3))
		_, err := s.likes.Like(ctx, bob, m.ID)
		require.NoError(t, err)
	}

	collect := func() []uint {
		var ids []uint
		for m, err := range s.likes.LikesFor(ctx, bob.ID) {
			require.NoError(t, err)
			ids = append(ids, m.ID)
		}
		return ids
	}

	first := collect()
	assert.Len(t, first, total)
	assert.IsIncreasing(t, first)
	assert.Equal(t, first, collect())

	// 提前终止
	seen := 0
	for range s.likes.LikesFor(ctx, bob.ID) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestConcreteScenario(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	u1 := testutil.CreateUser(t, s.db, "u1", "secret1")
	u2 := testutil.CreateUser(t, s.db, "u2", "secret1")

	m1, err := s.messages.CreateMessage(ctx, u1, "first")
	require.NoError(t, err)
	m2, err := s.messages.CreateMessage(ctx, u1, "second")
	require.NoError(t, err)

	created, err := s.likes.Like(ctx, u2, m1.ID)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, s.messages.DeleteMessage(ctx, m1.ID))
	assert.Zero(t, likeRows(t, s.db, u2.ID, m1.ID))

	// u2 删除 m2 由鉴权层拒绝，这里只确认 m2 仍存在
	_, err = s.messages.GetMessage(ctx, m2.ID)
	require.NoError(t, err)

	removed, err := s.likes.Unlike(ctx, u2, m1.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLikeCount_LikeCommittedDuringCacheFill(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, s.db, "alice", "secret1")
	bob := testutil.CreateUser(t, s.db, "bob", "secret1")
	m := testutil.CreateMessage(t, s.db, alice, "hello")

	likeRepo := repository.NewLikeRepository(s.db)
	_, err := s.counts.Get(ctx, m.ID, func(ctx context.Context) (int64, error) {
		n, err := likeRepo.CountByMessage(ctx, m.ID)
		if err != nil {
			return 0, err
		}
		_, err = s.likes.Like(ctx, bob, m.ID)
		return n, err
	})
	require.NoError(t, err)

	n, err := s.likes.LikeCount(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), likeRows(t, s.db, bob.ID, m.ID))
}
