package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/provider"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler tests run the real router, middleware included, over stub services.
// Each stub method delegates to a function field; methods a test does not
// stub report errNotStubbed so an unexpected call surfaces as a 500.

const (
	testJWTSecret     = "api-test-secret"
	testWebhookSecret = "hook-verify-token"
)

var errNotStubbed = errors.New("service method not stubbed")

type testServices struct {
	auth     *stubAuthService
	profile  *stubProfileService
	plan     *stubPlanService
	schedule *stubScheduleService
	activity *stubActivityService
	conn     *stubConnectionService
	admin    *stubAdminService
}

func newTestRouter(t *testing.T) (*gin.Engine, *testServices) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svcs := &testServices{
		auth:     &stubAuthService{},
		profile:  &stubProfileService{},
		plan:     &stubPlanService{},
		schedule: &stubScheduleService{},
		activity: &stubActivityService{},
		conn:     &stubConnectionService{},
		admin:    &stubAdminService{},
	}

	router := gin.New()
	SetupRoutes(router, testJWTSecret, testWebhookSecret, zap.NewNop(),
		svcs.auth, svcs.profile, svcs.plan, svcs.schedule, svcs.activity, svcs.conn, svcs.admin)
	return router, svcs
}

// bearerToken mints a token the way the auth service does, signed with the
// router's secret.
func bearerToken(t *testing.T, userID primitive.ObjectID, role domain.Role) string {
	t.Helper()
	claims := jwtClaims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "training-app",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err, "Signing a test token should not fail")
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "Marshaling the request body should not fail")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "Response body should be valid JSON: %s", rec.Body.String())
	return out
}

// --- AuthService stub ---

type stubAuthService struct {
	registerFn    func(ctx context.Context, name, email, password string) (*domain.User, error)
	loginFn       func(ctx context.Context, email, password string) (string, *domain.User, error)
	ensureAdminFn func(ctx context.Context, name, email, password string) error
}

var _ service.AuthService = (*stubAuthService)(nil)

func (s *stubAuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	if s.registerFn == nil {
		return nil, errNotStubbed
	}
	return s.registerFn(ctx, name, email, password)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if s.loginFn == nil {
		return "", nil, errNotStubbed
	}
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if s.ensureAdminFn == nil {
		return errNotStubbed
	}
	return s.ensureAdminFn(ctx, name, email, password)
}

func (s *stubAuthService) GetJWTSecret() string { return testJWTSecret }

// --- ProfileService stub ---

type stubProfileService struct {
	getFn            func(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
	saveFn           func(ctx context.Context, userID primitive.ObjectID, input service.ProfileInput) (*domain.Profile, error)
	updateSettingsFn func(ctx context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error)
}

var _ service.ProfileService = (*stubProfileService)(nil)

func (s *stubProfileService) Get(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(ctx, userID)
}

func (s *stubProfileService) Save(ctx context.Context, userID primitive.ObjectID, input service.ProfileInput) (*domain.Profile, error) {
	if s.saveFn == nil {
		return nil, errNotStubbed
	}
	return s.saveFn(ctx, userID, input)
}

func (s *stubProfileService) UpdateSettings(ctx context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error) {
	if s.updateSettingsFn == nil {
		return nil, errNotStubbed
	}
	return s.updateSettingsFn(ctx, userID, locale, theme, units, timezone)
}

// --- PlanService stub ---

type stubPlanService struct {
	createPlanFn func(ctx context.Context, ownerID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error)
	getPlanFn    func(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	getPlansFn   func(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	updatePlanFn func(ctx context.Context, ownerID, planID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error)
	deletePlanFn func(ctx context.Context, ownerID, planID primitive.ObjectID) error

	createWorkoutFn func(ctx context.Context, ownerID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error)
	getWorkoutFn    func(ctx context.Context, ownerID, workoutID primitive.ObjectID) (*domain.LibraryWorkout, error)
	getWorkoutsFn   func(ctx context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error)
	updateWorkoutFn func(ctx context.Context, ownerID, workoutID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error)
	deleteWorkoutFn func(ctx context.Context, ownerID, workoutID primitive.ObjectID) error
}

var _ service.PlanService = (*stubPlanService)(nil)

func (s *stubPlanService) CreatePlan(ctx context.Context, ownerID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error) {
	if s.createPlanFn == nil {
		return nil, errNotStubbed
	}
	return s.createPlanFn(ctx, ownerID, plan)
}

func (s *stubPlanService) GetPlan(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	if s.getPlanFn == nil {
		return nil, errNotStubbed
	}
	return s.getPlanFn(ctx, ownerID, planID)
}

func (s *stubPlanService) GetPlansByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	if s.getPlansFn == nil {
		return nil, errNotStubbed
	}
	return s.getPlansFn(ctx, ownerID)
}

func (s *stubPlanService) UpdatePlan(ctx context.Context, ownerID, planID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error) {
	if s.updatePlanFn == nil {
		return nil, errNotStubbed
	}
	return s.updatePlanFn(ctx, ownerID, planID, plan)
}

func (s *stubPlanService) DeletePlan(ctx context.Context, ownerID, planID primitive.ObjectID) error {
	if s.deletePlanFn == nil {
		return errNotStubbed
	}
	return s.deletePlanFn(ctx, ownerID, planID)
}

func (s *stubPlanService) CreateLibraryWorkout(ctx context.Context, ownerID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error) {
	if s.createWorkoutFn == nil {
		return nil, errNotStubbed
	}
	return s.createWorkoutFn(ctx, ownerID, workout)
}

func (s *stubPlanService) GetLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID) (*domain.LibraryWorkout, error) {
	if s.getWorkoutFn == nil {
		return nil, errNotStubbed
	}
	return s.getWorkoutFn(ctx, ownerID, workoutID)
}

func (s *stubPlanService) GetLibraryWorkoutsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error) {
	if s.getWorkoutsFn == nil {
		return nil, errNotStubbed
	}
	return s.getWorkoutsFn(ctx, ownerID)
}

func (s *stubPlanService) UpdateLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error) {
	if s.updateWorkoutFn == nil {
		return nil, errNotStubbed
	}
	return s.updateWorkoutFn(ctx, ownerID, workoutID, workout)
}

func (s *stubPlanService) DeleteLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID) error {
	if s.deleteWorkoutFn == nil {
		return errNotStubbed
	}
	return s.deleteWorkoutFn(ctx, ownerID, workoutID)
}

// --- ScheduleService stub ---

type stubScheduleService struct {
	createInstanceFn func(ctx context.Context, userID, planID primitive.ObjectID, startDate time.Time) (*domain.PlanInstance, error)
	getInstancesFn   func(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error)
	getInstanceFn    func(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, []domain.ScheduledWorkout, error)
	cancelInstanceFn func(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, error)
	insertWorkoutFn  func(ctx context.Context, userID, instanceID, libraryWorkoutID primitive.ObjectID, date time.Time) (*domain.ScheduledWorkout, error)
	rangeFn          func(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error)
	updateStatusFn   func(ctx context.Context, userID, workoutID primitive.ObjectID, status domain.WorkoutStatus) (*domain.ScheduledWorkout, error)
}

var _ service.ScheduleService = (*stubScheduleService)(nil)

func (s *stubScheduleService) CreateInstance(ctx context.Context, userID, planID primitive.ObjectID, startDate time.Time) (*domain.PlanInstance, error) {
	if s.createInstanceFn == nil {
		return nil, errNotStubbed
	}
	return s.createInstanceFn(ctx, userID, planID, startDate)
}

func (s *stubScheduleService) GetInstances(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error) {
	if s.getInstancesFn == nil {
		return nil, errNotStubbed
	}
	return s.getInstancesFn(ctx, userID)
}

func (s *stubScheduleService) GetInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, []domain.ScheduledWorkout, error) {
	if s.getInstanceFn == nil {
		return nil, nil, errNotStubbed
	}
	return s.getInstanceFn(ctx, userID, instanceID)
}

func (s *stubScheduleService) CancelInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, error) {
	if s.cancelInstanceFn == nil {
		return nil, errNotStubbed
	}
	return s.cancelInstanceFn(ctx, userID, instanceID)
}

func (s *stubScheduleService) InsertLibraryWorkout(ctx context.Context, userID, instanceID, libraryWorkoutID primitive.ObjectID, date time.Time) (*domain.ScheduledWorkout, error) {
	if s.insertWorkoutFn == nil {
		return nil, errNotStubbed
	}
	return s.insertWorkoutFn(ctx, userID, instanceID, libraryWorkoutID, date)
}

func (s *stubScheduleService) Range(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error) {
	if s.rangeFn == nil {
		return nil, errNotStubbed
	}
	return s.rangeFn(ctx, userID, from, to)
}

func (s *stubScheduleService) UpdateWorkoutStatus(ctx context.Context, userID, workoutID primitive.ObjectID, status domain.WorkoutStatus) (*domain.ScheduledWorkout, error) {
	if s.updateStatusFn == nil {
		return nil, errNotStubbed
	}
	return s.updateStatusFn(ctx, userID, workoutID, status)
}

func (s *stubScheduleService) MatchActivity(ctx context.Context, activity *domain.Activity) (*domain.ScheduledWorkout, error) {
	return nil, errNotStubbed
}

func (s *stubScheduleService) UnmatchActivity(ctx context.Context, activityID primitive.ObjectID) error {
	return errNotStubbed
}

func (s *stubScheduleService) RematchSweep(ctx context.Context) error { return errNotStubbed }

// --- ActivityService stub ---

type stubActivityService struct {
	createFn        func(ctx context.Context, userID primitive.ObjectID, input service.ActivityInput) (*domain.Activity, error)
	importGPXFn     func(ctx context.Context, userID primitive.ObjectID, name string, sport domain.Sport, data []byte) (*domain.Activity, error)
	listFn          func(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error)
	getFn           func(ctx context.Context, userID, activityID primitive.ObjectID) (*domain.Activity, error)
	deleteFn        func(ctx context.Context, userID, activityID primitive.ObjectID) error
	requestUploadFn func(ctx context.Context, userID, activityID primitive.ObjectID, contentType string) (*service.UploadURLResponse, error)
	confirmUploadFn func(ctx context.Context, userID, activityID primitive.ObjectID, objectKey, fileName string) (*domain.Activity, error)
	downloadURLFn   func(ctx context.Context, userID, activityID primitive.ObjectID) (string, error)
	deleteFileFn    func(ctx context.Context, userID, activityID primitive.ObjectID) error
}

var _ service.ActivityService = (*stubActivityService)(nil)

func (s *stubActivityService) Create(ctx context.Context, userID primitive.ObjectID, input service.ActivityInput) (*domain.Activity, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(ctx, userID, input)
}

func (s *stubActivityService) ImportGPX(ctx context.Context, userID primitive.ObjectID, name string, sport domain.Sport, data []byte) (*domain.Activity, error) {
	if s.importGPXFn == nil {
		return nil, errNotStubbed
	}
	return s.importGPXFn(ctx, userID, name, sport, data)
}

func (s *stubActivityService) List(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, userID, from, to)
}

func (s *stubActivityService) Get(ctx context.Context, userID, activityID primitive.ObjectID) (*domain.Activity, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(ctx, userID, activityID)
}

func (s *stubActivityService) Delete(ctx context.Context, userID, activityID primitive.ObjectID) error {
	if s.deleteFn == nil {
		return errNotStubbed
	}
	return s.deleteFn(ctx, userID, activityID)
}

func (s *stubActivityService) RequestFileUpload(ctx context.Context, userID, activityID primitive.ObjectID, contentType string) (*service.UploadURLResponse, error) {
	if s.requestUploadFn == nil {
		return nil, errNotStubbed
	}
	return s.requestUploadFn(ctx, userID, activityID, contentType)
}

func (s *stubActivityService) ConfirmFileUpload(ctx context.Context, userID, activityID primitive.ObjectID, objectKey, fileName string) (*domain.Activity, error) {
	if s.confirmUploadFn == nil {
		return nil, errNotStubbed
	}
	return s.confirmUploadFn(ctx, userID, activityID, objectKey, fileName)
}

func (s *stubActivityService) FileDownloadURL(ctx context.Context, userID, activityID primitive.ObjectID) (string, error) {
	if s.downloadURLFn == nil {
		return "", errNotStubbed
	}
	return s.downloadURLFn(ctx, userID, activityID)
}

func (s *stubActivityService) DeleteFile(ctx context.Context, userID, activityID primitive.ObjectID) error {
	if s.deleteFileFn == nil {
		return errNotStubbed
	}
	return s.deleteFileFn(ctx, userID, activityID)
}

// --- ConnectionService stub ---

type stubConnectionService struct {
	listFn             func(ctx context.Context, userID primitive.ObjectID) ([]domain.Connection, error)
	authorizationURLFn func(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (string, error)
	handleCallbackFn   func(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider, state, code string) (*domain.Connection, error)
	disconnectFn       func(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) error
	syncFn             func(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (int, error)

	webhookEvents []provider.WebhookEvent
}

var _ service.ConnectionService = (*stubConnectionService)(nil)

func (s *stubConnectionService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.Connection, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, userID)
}

func (s *stubConnectionService) AuthorizationURL(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (string, error) {
	if s.authorizationURLFn == nil {
		return "", errNotStubbed
	}
	return s.authorizationURLFn(ctx, userID, providerName)
}

func (s *stubConnectionService) HandleCallback(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider, state, code string) (*domain.Connection, error) {
	if s.handleCallbackFn == nil {
		return nil, errNotStubbed
	}
	return s.handleCallbackFn(ctx, userID, providerName, state, code)
}

func (s *stubConnectionService) Disconnect(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) error {
	if s.disconnectFn == nil {
		return errNotStubbed
	}
	return s.disconnectFn(ctx, userID, providerName)
}

func (s *stubConnectionService) Sync(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (int, error) {
	if s.syncFn == nil {
		return 0, errNotStubbed
	}
	return s.syncFn(ctx, userID, providerName)
}

func (s *stubConnectionService) RefreshExpiring(ctx context.Context) error { return errNotStubbed }

func (s *stubConnectionService) HandleWebhookEvent(ctx context.Context, providerName domain.Provider, event provider.WebhookEvent) {
	s.webhookEvents = append(s.webhookEvents, event)
}

// --- AdminService stub ---

type stubAdminService struct {
	listUsersFn func(ctx context.Context, page, perPage int64) (*service.UserPage, error)
	getUserFn   func(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

var _ service.AdminService = (*stubAdminService)(nil)

func (s *stubAdminService) ListUsers(ctx context.Context, page, perPage int64) (*service.UserPage, error) {
	if s.listUsersFn == nil {
		return nil, errNotStubbed
	}
	return s.listUsersFn(ctx, page, perPage)
}

func (s *stubAdminService) GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	if s.getUserFn == nil {
		return nil, errNotStubbed
	}
	return s.getUserFn(ctx, id)
}

// --- shared fixtures ---

func testUser(role domain.Role) *domain.User {
	return &domain.User{
		ID:        primitive.NewObjectID(),
		Name:      "Jo Lindner",
		Email:     "jo@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func assertErrorBody(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()
	require.Equal(t, wantStatus, rec.Code, "Unexpected status, body: %s", rec.Body.String())
	body := decodeBody[map[string]any](t, rec)
	require.Contains(t, body, "error", "Error responses should carry an 'error' field")
}
