package handler

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"vendry/internal/events"
	"vendry/internal/identity/models"
	"vendry/internal/identity/service"
	"vendry/internal/identity/store"
	"vendry/internal/identity/token"
	"vendry/internal/notify"
	"vendry/internal/onboarding/catalog"
	"vendry/internal/platform/metrics"
	id "vendry/pkg/domain"
	"vendry/pkg/testutil"
)

type silentSender struct{}

func (silentSender) Send(context.Context, models.OTPMethod, string, string) error { return nil }

type fixture struct {
	router   *chi.Mux
	svc      *service.Service
	profiles *store.MemoryProfileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := store.NewMemoryProfileStore()
	svc := service.New(
		profiles,
		store.NewMemorySessionStore(),
		store.NewMemoryActiveModeStore(),
		store.NewMemoryOTPStore(),
		token.NewService("test-signing-key", "vendry-test"),
		silentSender{},
		notify.NewMemory(),
		events.Noop{},
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
		service.Config{SessionTTL: time.Hour, OTPTTL: 5 * time.Minute, OTPMaxAttempts: 5},
	)

	h := New(svc, catalog.Default(), logger)
	router := chi.NewRouter()
	h.Register(router)
	return &fixture{router: router, svc: svc, profiles: profiles}
}

// newUser stores a customer profile directly and returns its ID.
func (f *fixture) newUser(t *testing.T, email string) id.UserID {
	t.Helper()
	profile := models.AuthProfile{
		ID:         id.NewUserID(),
		Email:      email,
		Name:       "Test User",
		Role:       models.RoleCustomer,
		ActiveRole: models.ModeCustomer,
		Onboarding: models.NewOnboardingState(),
	}
	require.NoError(t, f.profiles.Save(context.Background(), profile))
	return profile.ID
}

// do sends a request carrying the wizard session key and, when userID is
// non-empty, the authenticated user.
func (f *fixture) do(t *testing.T, method, path, key, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, path, body)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	if key != "" {
		req.Header.Set("X-Wizard-Session", key)
	}
	if userID != "" {
		req = testutil.WithUserID(req, userID)
	}
	return testutil.DoRequest(f.router, req)
}

// personalBankAnswers fills every question on the personal-account,
// bank-payout path.
func personalBankAnswers() map[string]any {
	return map[string]any{
		"item_title":  "Vintage camera",
		"categories":  []string{"electronics"},
		"condition":   "good",
		"description": "Works great, light wear.",
		"photos":      []map[string]string{{"name": "front.jpg"}},
		"price_cents": 25000,
		"currency":    "KES",
		"shipping":    "courier",

		"account_type":  "personal",
		"full_name":     "Ada Achieng",
		"date_of_birth": "1990-04-12",
		"address_line1": "12 Riverside Dr",
		"city":          "Nairobi",
		"contact_email": "ada@example.com",
		"contact_phone": "+254700000001",

		"phone_code":          "123456",
		"id_document":         map[string]string{"name": "id.pdf"},
		"payout_method":       "bank",
		"bank_account_holder": "Ada Achieng",
		"bank_account_number": "0102030405",
		"bank_name":           "Equity",
	}
}

func TestAnonymousSession(t *testing.T) {
	f := newFixture(t)

	t.Run("first contact mints a wizard session key", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/onboarding/current", "", "", nil)
		testutil.AssertStatusOK(t, rr)
		require.NotEmpty(t, rr.Header().Get("X-Wizard-Session"))

		resp := testutil.UnmarshalResponse[currentResponse](t, rr)
		require.Equal(t, "listing.intro", resp.Question.ID)
		require.False(t, resp.CanGoBack)
		require.False(t, resp.Completed)
	})

	t.Run("the key is echoed and the session persists across requests", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/onboarding/current", "anon-1", "", nil)
		require.Equal(t, "anon-1", rr.Header().Get("X-Wizard-Session"))

		rr = f.do(t, http.MethodPatch, "/onboarding/draft", "anon-1", "",
			map[string]string{"item_title": "Vintage camera"})
		testutil.AssertStatusOK(t, rr)

		rr = f.do(t, http.MethodGet, "/onboarding/current", "anon-1", "", nil)
		resp := testutil.UnmarshalResponse[currentResponse](t, rr)
		require.Equal(t, "Vintage camera", resp.Draft.ItemTitle)
	})
}

func TestNavigation(t *testing.T) {
	f := newFixture(t)
	key := "nav-1"

	t.Run("intro advances", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/next", key, "", nil)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[advanceResponse](t, rr)
		require.Empty(t, resp.ValidationError)
		require.NotNil(t, resp.Question)
		require.Equal(t, "listing.item_title", resp.Question.ID)
	})

	t.Run("validation failure comes back as 200 with the message", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/next", key, "", nil)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[advanceResponse](t, rr)
		require.NotEmpty(t, resp.ValidationError)
		require.NotNil(t, resp.Question)
		require.Equal(t, "listing.item_title", resp.Question.ID, "position must not move")
	})

	t.Run("fixing the answer unblocks", func(t *testing.T) {
		rr := f.do(t, http.MethodPatch, "/onboarding/draft", key, "",
			map[string]string{"item_title": "Camera"})
		testutil.AssertStatusOK(t, rr)

		rr = f.do(t, http.MethodPost, "/onboarding/next", key, "", nil)
		resp := testutil.UnmarshalResponse[advanceResponse](t, rr)
		require.Empty(t, resp.ValidationError)
		require.Equal(t, "listing.category", resp.Question.ID)
	})

	t.Run("back never validates", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/back", key, "", nil)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[advanceResponse](t, rr)
		require.NotNil(t, resp.Question)
		require.Equal(t, "listing.item_title", resp.Question.ID)
	})
}

func TestAttachFile(t *testing.T) {
	f := newFixture(t)
	key := "files-1"
	data := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))

	t.Run("attaching lands bytes in the arena and metadata in the draft", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/draft/files", key, "", map[string]any{
			"field": "photos", "name": "front.jpg", "mime_type": "image/jpeg", "data": data,
		})
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[draftResponse](t, rr)
		require.Len(t, resp.Draft.Photos, 1)
		require.Equal(t, "front.jpg", resp.Draft.Photos[0].Name)
		require.EqualValues(t, len("jpeg bytes"), resp.Draft.Photos[0].SizeBytes)
		require.NotEmpty(t, resp.Draft.Photos[0].BlobRef)
	})

	t.Run("metadata-only attachment is accepted", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/draft/files", key, "", map[string]any{
			"field": "id_document", "name": "id.pdf", "size_bytes": 2048,
		})
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[draftResponse](t, rr)
		require.Equal(t, "id.pdf", resp.Draft.IDDocument.Name)
		require.Empty(t, resp.Draft.IDDocument.BlobRef)
	})

	t.Run("name is required", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/draft/files", key, "", map[string]any{
			"field": "photos", "data": data,
		})
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_input")
	})

	t.Run("data must be base64", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/draft/files", key, "", map[string]any{
			"field": "photos", "name": "x.jpg", "data": "%%% not base64 %%%",
		})
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_input")
	})

	t.Run("non-file fields reject attachments", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/draft/files", key, "", map[string]any{
			"field": "item_title", "name": "x.jpg", "data": data,
		})
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_input")
	})

	t.Run("removal by field and name", func(t *testing.T) {
		rr := f.do(t, http.MethodDelete, "/onboarding/draft/files?field=photos&name=front.jpg", key, "", nil)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[draftResponse](t, rr)
		require.Empty(t, resp.Draft.Photos)
	})

	t.Run("removal needs both query params", func(t *testing.T) {
		rr := f.do(t, http.MethodDelete, "/onboarding/draft/files?field=photos", key, "", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_input")
	})
}

func TestAdoption(t *testing.T) {
	f := newFixture(t)
	key := "adopt-1"
	var userID id.UserID

	testutil.Given(t, "an anonymous draft with answers", func(t *testing.T) {
		rr := f.do(t, http.MethodPatch, "/onboarding/draft", key, "",
			map[string]string{"item_title": "Pre-auth lamp"})
		testutil.AssertStatusOK(t, rr)
	})

	testutil.When(t, "the user authenticates and replays the wizard key", func(t *testing.T) {
		userID = f.newUser(t, "adopt@example.com")
		rr := f.do(t, http.MethodGet, "/onboarding/current", key, userID.String(), nil)
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[currentResponse](t, rr)
		require.Equal(t, "Pre-auth lamp", resp.Draft.ItemTitle)
	})

	testutil.Then(t, "the pre-auth answers are flushed into the profile", func(t *testing.T) {
		stored, err := f.profiles.Load(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, "Pre-auth lamp", stored.Onboarding.Draft.ItemTitle)
		require.Equal(t, models.OnboardingInProgress, stored.Onboarding.Status)
	})

	testutil.Then(t, "later requests without the key still see the draft", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/onboarding/current", "", userID.String(), nil)
		resp := testutil.UnmarshalResponse[currentResponse](t, rr)
		require.Equal(t, "Pre-auth lamp", resp.Draft.ItemTitle)
	})
}

func TestComplete(t *testing.T) {
	f := newFixture(t)

	t.Run("anonymous caller is told to sign in", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/onboarding/complete", "anon-2", "", nil)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("a fully answered wizard completes and upgrades", func(t *testing.T) {
		userID := f.newUser(t, "complete@example.com")
		uid := userID.String()

		rr := f.do(t, http.MethodPatch, "/onboarding/draft", "", uid, personalBankAnswers())
		testutil.AssertStatusOK(t, rr)

		completed := false
		for range 25 {
			rr = f.do(t, http.MethodPost, "/onboarding/next", "", uid, nil)
			testutil.AssertStatusOK(t, rr)
			adv := testutil.UnmarshalResponse[advanceResponse](t, rr)
			require.Empty(t, adv.ValidationError)
			if adv.Completed {
				completed = true
				break
			}
		}
		require.True(t, completed, "wizard should reach the terminal review")

		rr = f.do(t, http.MethodPost, "/onboarding/complete", "", uid, nil)
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[completeResponse](t, rr)
		require.Equal(t, "completed", resp.Status)
		require.Equal(t, "vendor", resp.Role)
		require.Equal(t, "vendor", resp.ActiveMode)
		require.Contains(t, resp.Capabilities, "can_sell")
		require.NotNil(t, resp.CompletedAt)

		// The next wizard read rebuilds from the completed profile.
		rr = f.do(t, http.MethodGet, "/onboarding/current", "", uid, nil)
		cur := testutil.UnmarshalResponse[currentResponse](t, rr)
		require.True(t, cur.Completed)
	})

	t.Run("a draft built before signing in survives direct completion", func(t *testing.T) {
		key := "straight-1"
		rr := f.do(t, http.MethodPatch, "/onboarding/draft", key, "", personalBankAnswers())
		testutil.AssertStatusOK(t, rr)

		// Authenticate and go straight to completion, replaying the wizard
		// key but never reading the wizard first.
		userID := f.newUser(t, "straight@example.com")
		rr = f.do(t, http.MethodPost, "/onboarding/complete", key, userID.String(), nil)
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[completeResponse](t, rr)
		require.Equal(t, "completed", resp.Status)
		require.Equal(t, "vendor", resp.Role)

		stored, err := f.profiles.Load(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, "Vintage camera", stored.Onboarding.Draft.ItemTitle)
		require.Equal(t, models.OnboardingCompleted, stored.Onboarding.Status)
	})
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	userID := f.newUser(t, "reset@example.com")
	uid := userID.String()

	rr := f.do(t, http.MethodPatch, "/onboarding/draft", "", uid, map[string]string{"item_title": "Discard me"})
	testutil.AssertStatusOK(t, rr)

	rr = f.do(t, http.MethodPost, "/onboarding/reset", "", uid, nil)
	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[currentResponse](t, rr)
	require.Empty(t, resp.Draft.ItemTitle)
	require.Equal(t, "listing.intro", resp.Question.ID)
}
