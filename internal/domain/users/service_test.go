package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"tailtribe/internal/ports/auth"

	"golang.org/x/crypto/bcrypt"
)

// -------------------------
// Test doubles
// -------------------------

type testRepo struct {
	byID map[string]User
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]User{}}
}

func (r *testRepo) Create(ctx context.Context, u User) error {
	for _, x := range r.byID {
		if x.Email == u.Email {
			return ErrEmailTaken
		}
	}
	r.byID[u.ID] = u
	return nil
}

func (r *testRepo) Update(ctx context.Context, u User) error {
	if _, ok := r.byID[u.ID]; !ok {
		return ErrNotFound
	}
	r.byID[u.ID] = u
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (User, error) {
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *testRepo) find(match func(User) bool) (User, error) {
	for _, u := range r.byID {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *testRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.find(func(u User) bool { return u.Email == email })
}

func (r *testRepo) GetByGoogleSubject(ctx context.Context, subject string) (User, error) {
	return r.find(func(u User) bool { return u.GoogleSubject != "" && u.GoogleSubject == subject })
}

func (r *testRepo) GetByReferralCode(ctx context.Context, code string) (User, error) {
	return r.find(func(u User) bool { return u.ReferralCode == code })
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(c auth.Claims) (string, error) {
	return "tok-" + c.UserID + "-" + string(c.Role), nil
}

type fakeTwoFactor struct {
	issuedFor string
}

func (f *fakeTwoFactor) Issue(ctx context.Context, userID, email string) (string, error) {
	f.issuedFor = userID
	return "ch-1", nil
}

func (f *fakeTwoFactor) Verify(ctx context.Context, challengeID, code string) (string, error) {
	if challengeID == "ch-1" && code == "123456" {
		return f.issuedFor, nil
	}
	return "", errors.New("bad code")
}

type referralCall struct {
	referrerID, referredID, code string
}

type fakeReferrals struct {
	calls []referralCall
	err   error
}

func (f *fakeReferrals) Record(ctx context.Context, referrerID, referredID, code string) error {
	f.calls = append(f.calls, referralCall{referrerID, referredID, code})
	return f.err
}

type fixture struct {
	svc       *Service
	repo      *testRepo
	twoFactor *fakeTwoFactor
	referrals *fakeReferrals
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newTestRepo(),
		twoFactor: &fakeTwoFactor{},
		referrals: &fakeReferrals{},
	}
	f.svc = NewService(f.repo, fakeIssuer{}, f.twoFactor, f.referrals)
	f.svc.hashCost = bcrypt.MinCost
	f.svc.now = func() time.Time { return time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) register(t *testing.T, email string, role auth.Role) Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: "supersecret",
		Name:     "Test",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return s
}

// -------------------------
// Tests
// -------------------------

func TestValidEmail(t *testing.T) {
	valid := []string{"ana@example.com", " Ana.Peeters+pets@Mail.BE ", "jan_de-vries@sub.example.nl"}
	invalid := []string{"", "ana", "ana@", "@example.com", "ana@example", "ana@@example.com", "ana example@x.be"}

	for _, s := range valid {
		if !ValidEmail(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if ValidEmail(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestRegister_NormalizesAndDefaults(t *testing.T) {
	f := newFixture()

	s := f.register(t, "  Ana@Example.COM ", "")
	if s.User.Email != "ana@example.com" {
		t.Fatalf("expected normalized email, got %q", s.User.Email)
	}
	if s.User.Role != auth.RoleOwner || s.User.Country != CountryBE {
		t.Fatalf("expected owner/BE defaults, got %s/%s", s.User.Role, s.User.Country)
	}
	if len(s.User.ReferralCode) != 8 {
		t.Fatalf("expected 8-char referral code, got %q", s.User.ReferralCode)
	}
	if s.Token != "tok-"+s.User.ID+"-owner" {
		t.Fatalf("unexpected token %q", s.Token)
	}
	if s.User.PasswordHash == "supersecret" {
		t.Fatalf("password must be hashed")
	}
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture()
	f.register(t, "ana@example.com", auth.RoleOwner)

	reject := func(in RegisterInput, want error) {
		t.Helper()
		if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, want) {
			t.Fatalf("register %s: expected %v, got %v", in.Email, want, err)
		}
	}

	// El email se compara en minúsculas.
	reject(RegisterInput{Email: "ANA@example.com", Password: "supersecret", Name: "X"}, ErrEmailTaken)
	reject(RegisterInput{Email: "b@example.com", Password: "short", Name: "X"}, ErrInvalidInput)
	reject(RegisterInput{Email: "c@example.com", Password: "supersecret", Name: "X", Role: auth.RoleAdmin}, ErrInvalidInput)
	reject(RegisterInput{Email: "d@example.com", Password: "supersecret", Name: "X", Country: "FR"}, ErrInvalidInput)
	reject(RegisterInput{Email: "e@example.com", Password: "supersecret"}, ErrInvalidInput)
	reject(RegisterInput{Email: "f@example.com", Password: "supersecret", Name: "X", ReferralCode: "NOPE1234"}, ErrInvalidReferral)
}

func TestRegister_WithReferralRecordsIt(t *testing.T) {
	f := newFixture()
	referrer := f.register(t, "ref@example.com", auth.RoleOwner)

	s, err := f.svc.Register(context.Background(), RegisterInput{
		Email:        "new@example.com",
		Password:     "supersecret",
		Name:         "New",
		Country:      "nl",
		ReferralCode: " " + referrer.User.ReferralCode,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.User.Country != CountryNL {
		t.Fatalf("expected NL, got %s", s.User.Country)
	}
	if len(f.referrals.calls) != 1 {
		t.Fatalf("expected 1 referral recorded, got %d", len(f.referrals.calls))
	}
	call := f.referrals.calls[0]
	if call.referrerID != referrer.User.ID || call.referredID != s.User.ID || call.code != referrer.User.ReferralCode {
		t.Fatalf("unexpected referral call %+v", call)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture()
	reg := f.register(t, "ana@example.com", auth.RoleCaregiver)

	res, err := f.svc.Login(context.Background(), "ANA@example.com", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.TwoFactorRequired || res.User.ID != reg.User.ID || res.Token == "" {
		t.Fatalf("unexpected login result %+v", res)
	}

	if _, err := f.svc.Login(context.Background(), "ana@example.com", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "nobody@example.com", "supersecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLogin_TwoFactorFlow(t *testing.T) {
	f := newFixture()
	reg := f.register(t, "ana@example.com", auth.RoleOwner)

	if _, err := f.svc.SetTwoFactor(context.Background(), reg.User.ID, true); err != nil {
		t.Fatalf("enable 2fa: %v", err)
	}

	res, err := f.svc.Login(context.Background(), "ana@example.com", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.TwoFactorRequired || res.ChallengeID != "ch-1" || res.Token != "" {
		t.Fatalf("expected pending 2fa challenge, got %+v", res)
	}

	sess, err := f.svc.VerifyTwoFactor(context.Background(), "ch-1", "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.User.ID != reg.User.ID || sess.Token == "" {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestGoogleLogin_LinksExistingOrCreatesOwner(t *testing.T) {
	f := newFixture()
	existing := f.register(t, "ana@example.com", auth.RoleCaregiver)

	s, err := f.svc.GoogleLogin(context.Background(), GoogleIdentity{Subject: "g-1", Email: "Ana@example.com", Name: "Ana"})
	if err != nil {
		t.Fatalf("google login existing: %v", err)
	}
	if s.User.ID != existing.User.ID || s.User.GoogleSubject != "g-1" {
		t.Fatalf("expected linked account, got %+v", s.User)
	}

	s2, err := f.svc.GoogleLogin(context.Background(), GoogleIdentity{Subject: "g-2", Email: "jan@example.nl"})
	if err != nil {
		t.Fatalf("google login new: %v", err)
	}
	if s2.User.Role != auth.RoleOwner || s2.User.Name != "jan" || s2.User.PasswordHash != "" {
		t.Fatalf("unexpected new google user %+v", s2.User)
	}

	// Sin password no hay login clásico.
	if _, err := f.svc.Login(context.Background(), "jan@example.nl", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	again, err := f.svc.GoogleLogin(context.Background(), GoogleIdentity{Subject: "g-2", Email: "jan@example.nl"})
	if err != nil || again.User.ID != s2.User.ID {
		t.Fatalf("expected same user by subject, got %+v err=%v", again.User, err)
	}
}

func TestGoogleLogin_TwoFactorUserGetsChallenge(t *testing.T) {
	f := newFixture()
	reg := f.register(t, "ana@example.com", auth.RoleOwner)
	if _, err := f.svc.SetTwoFactor(context.Background(), reg.User.ID, true); err != nil {
		t.Fatalf("enable 2fa: %v", err)
	}

	// Primera vez: vincula por email y pide código.
	res, err := f.svc.GoogleLogin(context.Background(), GoogleIdentity{Subject: "g-1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if !res.TwoFactorRequired || res.ChallengeID != "ch-1" || res.Token != "" {
		t.Fatalf("expected a 2fa challenge without token, got %+v", res)
	}
	if f.twoFactor.issuedFor != reg.User.ID {
		t.Fatalf("challenge issued for %q", f.twoFactor.issuedFor)
	}

	// Ya vinculado por subject: también pide código.
	res, err = f.svc.GoogleLogin(context.Background(), GoogleIdentity{Subject: "g-1", Email: "ana@example.com"})
	if err != nil || !res.TwoFactorRequired {
		t.Fatalf("expected challenge by subject, got %+v err=%v", res, err)
	}

	sess, err := f.svc.VerifyTwoFactor(context.Background(), res.ChallengeID, "123456")
	if err != nil || sess.User.ID != reg.User.ID || sess.Token == "" {
		t.Fatalf("verify: %v %+v", err, sess)
	}
}

func TestRegister_ReferralFailureStillReturnsSession(t *testing.T) {
	f := newFixture()
	referrer := f.register(t, "ref@example.com", auth.RoleOwner)
	f.referrals.err = errors.New("referrals store down")

	s, err := f.svc.Register(context.Background(), RegisterInput{
		Email:        "new@example.com",
		Password:     "supersecret",
		Name:         "New",
		Role:         auth.RoleOwner,
		ReferralCode: referrer.User.ReferralCode,
	})
	if err != nil {
		t.Fatalf("register should succeed despite the referral error: %v", err)
	}
	if s.Token == "" || s.User.Email != "new@example.com" {
		t.Fatalf("unexpected session %+v", s)
	}
	if len(f.referrals.calls) != 1 {
		t.Fatalf("expected one referral attempt, got %d", len(f.referrals.calls))
	}
	if _, err := f.repo.GetByEmail(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("user should be stored: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	reg := f.register(t, "ana@example.com", auth.RoleOwner)

	city := " Gent "
	u, err := f.svc.UpdateProfile(context.Background(), reg.User.ID, UpdateProfileInput{City: &city})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.City != "Gent" || u.Name != "Test" {
		t.Fatalf("unexpected profile %+v", u)
	}

	empty := "  "
	if _, err := f.svc.UpdateProfile(context.Background(), reg.User.ID, UpdateProfileInput{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}
}
