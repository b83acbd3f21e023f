package service

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"veloplan/training-app/internal/cache"
	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/provider"
	"veloplan/training-app/internal/repository"
	"veloplan/training-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory fakes for the repository, storage, cache, and provider
// interfaces. They mirror the error contracts of the real implementations
// (ErrNotFound, ErrDuplicate, ID assignment, sort order) closely enough
// for service-level tests to exercise the same code paths.

var (
	_ repository.UserRepository             = (*fakeUserRepo)(nil)
	_ repository.ProfileRepository          = (*fakeProfileRepo)(nil)
	_ repository.TrainingPlanRepository     = (*fakePlanRepo)(nil)
	_ repository.LibraryWorkoutRepository   = (*fakeLibraryRepo)(nil)
	_ repository.PlanInstanceRepository     = (*fakeInstanceRepo)(nil)
	_ repository.ScheduledWorkoutRepository = (*fakeWorkoutRepo)(nil)
	_ repository.ActivityRepository         = (*fakeActivityRepo)(nil)
	_ repository.ConnectionRepository       = (*fakeConnectionRepo)(nil)
	_ repository.FileRepository             = (*fakeFileRepo)(nil)
	_ storage.FileStorage                   = (*fakeFileStorage)(nil)
	_ cache.StateStore                      = (*fakeStateStore)(nil)
	_ provider.Client                       = (*fakeProviderClient)(nil)
)

// fakeClock hands out strictly increasing timestamps so records created in
// sequence get distinct CreatedAt values.
var fakeClock int64

func nextTime() time.Time {
	n := atomic.AddInt64(&fakeClock, 1)
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Millisecond)
}

// day builds a UTC calendar-day timestamp.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- Users ---

type fakeUserRepo struct {
	users []domain.User
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	for i := range f.users {
		if f.users[i].Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := nextTime()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users = append(f.users, *user)
	return user.ID, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for i := range f.users {
		if f.users[i].Email == email {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context, offset, limit int64) ([]domain.User, error) {
	var page []domain.User
	for i := offset; i < int64(len(f.users)) && int64(len(page)) < limit; i++ {
		page = append(page, f.users[i])
	}
	return page, nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

// --- Profiles ---

type fakeProfileRepo struct {
	profiles map[primitive.ObjectID]domain.Profile // keyed by user ID
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[primitive.ObjectID]domain.Profile)}
}

func (f *fakeProfileRepo) Upsert(_ context.Context, profile *domain.Profile) (*domain.Profile, error) {
	now := nextTime()
	existing, ok := f.profiles[profile.UserID]
	if !ok {
		stored := *profile
		stored.ID = primitive.NewObjectID()
		stored.CreatedAt = now
		stored.UpdatedAt = now
		f.profiles[profile.UserID] = stored
		out := stored
		return &out, nil
	}

	// Wizard fields are replaced; locale/appearance settings only apply
	// on insert, like the Mongo $setOnInsert.
	existing.FullName = profile.FullName
	existing.Sex = profile.Sex
	existing.BirthDate = profile.BirthDate
	existing.WeightKG = profile.WeightKG
	existing.HeightCM = profile.HeightCM
	existing.FTPWatts = profile.FTPWatts
	existing.MaxHeartRate = profile.MaxHeartRate
	existing.RestingHeartRate = profile.RestingHeartRate
	existing.WeeklyHours = profile.WeeklyHours
	existing.Goals = profile.Goals
	existing.OnboardingStep = profile.OnboardingStep
	existing.OnboardingComplete = profile.OnboardingComplete
	existing.UpdatedAt = now
	f.profiles[profile.UserID] = existing
	out := existing
	return &out, nil
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := p
	return &out, nil
}

func (f *fakeProfileRepo) UpdateSettings(_ context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Locale = locale
	p.Theme = theme
	p.Units = units
	p.Timezone = timezone
	p.UpdatedAt = nextTime()
	f.profiles[userID] = p
	out := p
	return &out, nil
}

// --- Training plans ---

type fakePlanRepo struct {
	plans map[primitive.ObjectID]domain.TrainingPlan
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[primitive.ObjectID]domain.TrainingPlan)}
}

func (f *fakePlanRepo) Create(_ context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	plan.ID = primitive.NewObjectID()
	now := nextTime()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	f.plans[plan.ID] = *plan
	return plan.ID, nil
}

func (f *fakePlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := p
	return &out, nil
}

func (f *fakePlanRepo) GetByOwnerID(_ context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	var out []domain.TrainingPlan
	for _, p := range f.plans {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlanRepo) Update(_ context.Context, plan *domain.TrainingPlan) error {
	existing, ok := f.plans[plan.ID]
	if !ok || existing.OwnerID != plan.OwnerID {
		return repository.ErrNotFound
	}
	stored := *plan
	stored.UpdatedAt = nextTime()
	f.plans[plan.ID] = stored
	return nil
}

func (f *fakePlanRepo) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	existing, ok := f.plans[id]
	if !ok || existing.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(f.plans, id)
	return nil
}

// --- Library workouts ---

type fakeLibraryRepo struct {
	workouts map[primitive.ObjectID]domain.LibraryWorkout
}

func newFakeLibraryRepo() *fakeLibraryRepo {
	return &fakeLibraryRepo{workouts: make(map[primitive.ObjectID]domain.LibraryWorkout)}
}

func (f *fakeLibraryRepo) Create(_ context.Context, workout *domain.LibraryWorkout) (primitive.ObjectID, error) {
	workout.ID = primitive.NewObjectID()
	now := nextTime()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	f.workouts[workout.ID] = *workout
	return workout.ID, nil
}

func (f *fakeLibraryRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.LibraryWorkout, error) {
	w, ok := f.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := w
	return &out, nil
}

func (f *fakeLibraryRepo) GetByOwnerID(_ context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error) {
	var out []domain.LibraryWorkout
	for _, w := range f.workouts {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeLibraryRepo) Update(_ context.Context, workout *domain.LibraryWorkout) error {
	existing, ok := f.workouts[workout.ID]
	if !ok || existing.OwnerID != workout.OwnerID {
		return repository.ErrNotFound
	}
	stored := *workout
	stored.UpdatedAt = nextTime()
	f.workouts[workout.ID] = stored
	return nil
}

func (f *fakeLibraryRepo) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	existing, ok := f.workouts[id]
	if !ok || existing.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(f.workouts, id)
	return nil
}

// --- Plan instances ---

type fakeInstanceRepo struct {
	instances map[primitive.ObjectID]domain.PlanInstance
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{instances: make(map[primitive.ObjectID]domain.PlanInstance)}
}

func (f *fakeInstanceRepo) Create(_ context.Context, instance *domain.PlanInstance) (primitive.ObjectID, error) {
	instance.ID = primitive.NewObjectID()
	now := nextTime()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	f.instances[instance.ID] = *instance
	return instance.ID, nil
}

func (f *fakeInstanceRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.PlanInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := inst
	return &out, nil
}

func (f *fakeInstanceRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error) {
	var out []domain.PlanInstance
	for _, inst := range f.instances {
		if inst.UserID == userID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (f *fakeInstanceRepo) GetActiveByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error) {
	var out []domain.PlanInstance
	for _, inst := range f.instances {
		if inst.UserID == userID && inst.Status == domain.InstanceStatusActive {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstanceRepo) UpdateStatus(_ context.Context, id, userID primitive.ObjectID, status domain.InstanceStatus) error {
	inst, ok := f.instances[id]
	if !ok || inst.UserID != userID {
		return repository.ErrNotFound
	}
	inst.Status = status
	inst.UpdatedAt = nextTime()
	f.instances[id] = inst
	return nil
}

// --- Scheduled workouts ---

type fakeWorkoutRepo struct {
	workouts map[primitive.ObjectID]domain.ScheduledWorkout
}

func newFakeWorkoutRepo() *fakeWorkoutRepo {
	return &fakeWorkoutRepo{workouts: make(map[primitive.ObjectID]domain.ScheduledWorkout)}
}

// seed stores a workout as-is, assigning an ID when missing. Lets tests
// control CreatedAt for tie-break cases.
func (f *fakeWorkoutRepo) seed(w domain.ScheduledWorkout) domain.ScheduledWorkout {
	if w.ID == primitive.NilObjectID {
		w.ID = primitive.NewObjectID()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = nextTime()
	}
	f.workouts[w.ID] = w
	return w
}

func (f *fakeWorkoutRepo) Create(_ context.Context, workout *domain.ScheduledWorkout) (primitive.ObjectID, error) {
	workout.ID = primitive.NewObjectID()
	now := nextTime()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	f.workouts[workout.ID] = *workout
	return workout.ID, nil
}

func (f *fakeWorkoutRepo) CreateMany(_ context.Context, workouts []domain.ScheduledWorkout) error {
	for i := range workouts {
		workouts[i].ID = primitive.NewObjectID()
		now := nextTime()
		workouts[i].CreatedAt = now
		workouts[i].UpdatedAt = now
		f.workouts[workouts[i].ID] = workouts[i]
	}
	return nil
}

func (f *fakeWorkoutRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.ScheduledWorkout, error) {
	w, ok := f.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := w
	return &out, nil
}

func (f *fakeWorkoutRepo) GetByInstanceID(_ context.Context, instanceID primitive.ObjectID) ([]domain.ScheduledWorkout, error) {
	var out []domain.ScheduledWorkout
	for _, w := range f.workouts {
		if w.InstanceID == instanceID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeWorkoutRepo) GetByUserAndDateRange(_ context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error) {
	var out []domain.ScheduledWorkout
	for _, w := range f.workouts {
		if w.UserID != userID {
			continue
		}
		if w.Date.Before(from) || w.Date.After(to) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeWorkoutRepo) UpdateStatus(_ context.Context, id, userID primitive.ObjectID, status domain.WorkoutStatus) error {
	w, ok := f.workouts[id]
	if !ok || w.UserID != userID {
		return repository.ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = nextTime()
	f.workouts[id] = w
	return nil
}

func (f *fakeWorkoutRepo) SetMatch(_ context.Context, id, activityID primitive.ObjectID) error {
	w, ok := f.workouts[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.MatchedActivityID = &activityID
	w.Status = domain.WorkoutStatusCompleted
	w.UpdatedAt = nextTime()
	f.workouts[id] = w
	return nil
}

func (f *fakeWorkoutRepo) ClearMatchByActivity(_ context.Context, activityID primitive.ObjectID) error {
	for id, w := range f.workouts {
		if w.MatchedActivityID != nil && *w.MatchedActivityID == activityID {
			w.MatchedActivityID = nil
			w.Status = domain.WorkoutStatusPlanned
			w.UpdatedAt = nextTime()
			f.workouts[id] = w
		}
	}
	return nil
}

func (f *fakeWorkoutRepo) DeleteUnmatchedByInstance(_ context.Context, instanceID primitive.ObjectID) error {
	for id, w := range f.workouts {
		if w.InstanceID == instanceID && w.Status == domain.WorkoutStatusPlanned && w.MatchedActivityID == nil {
			delete(f.workouts, id)
		}
	}
	return nil
}

// --- Activities ---

type fakeActivityRepo struct {
	activities map[primitive.ObjectID]domain.Activity
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{activities: make(map[primitive.ObjectID]domain.Activity)}
}

func (f *fakeActivityRepo) seed(a domain.Activity) domain.Activity {
	if a.ID == primitive.NilObjectID {
		a.ID = primitive.NewObjectID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = nextTime()
	}
	f.activities[a.ID] = a
	return a
}

func (f *fakeActivityRepo) Create(_ context.Context, activity *domain.Activity) (primitive.ObjectID, error) {
	if activity.ExternalID != "" {
		for _, a := range f.activities {
			if a.UserID == activity.UserID && a.Source == activity.Source && a.ExternalID == activity.ExternalID {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	activity.ID = primitive.NewObjectID()
	now := nextTime()
	activity.CreatedAt = now
	activity.UpdatedAt = now
	f.activities[activity.ID] = *activity
	return activity.ID, nil
}

func (f *fakeActivityRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := a
	return &out, nil
}

func (f *fakeActivityRepo) GetByUserAndTimeRange(_ context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range f.activities {
		if a.UserID != userID {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (f *fakeActivityRepo) GetByExternalID(_ context.Context, userID primitive.ObjectID, source domain.ActivitySource, externalID string) (*domain.Activity, error) {
	for _, a := range f.activities {
		if a.UserID == userID && a.Source == source && a.ExternalID == externalID {
			out := a
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeActivityRepo) GetUnmatchedByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range f.activities {
		if a.UserID == userID && a.MatchedWorkoutID == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeActivityRepo) SetFile(_ context.Context, id primitive.ObjectID, fileID *primitive.ObjectID) error {
	a, ok := f.activities[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.FileID = fileID
	a.UpdatedAt = nextTime()
	f.activities[id] = a
	return nil
}

func (f *fakeActivityRepo) SetMatch(_ context.Context, id primitive.ObjectID, workoutID *primitive.ObjectID) error {
	a, ok := f.activities[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.MatchedWorkoutID = workoutID
	a.UpdatedAt = nextTime()
	f.activities[id] = a
	return nil
}

func (f *fakeActivityRepo) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	a, ok := f.activities[id]
	if !ok || a.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.activities, id)
	return nil
}

// --- Connections ---

type fakeConnectionRepo struct {
	conns map[primitive.ObjectID]domain.Connection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{conns: make(map[primitive.ObjectID]domain.Connection)}
}

func (f *fakeConnectionRepo) Upsert(_ context.Context, conn *domain.Connection) (*domain.Connection, error) {
	now := nextTime()
	for id, c := range f.conns {
		if c.UserID == conn.UserID && c.Provider == conn.Provider {
			c.ProviderUserID = conn.ProviderUserID
			c.AthleteName = conn.AthleteName
			c.AccessToken = conn.AccessToken
			c.RefreshToken = conn.RefreshToken
			c.ExpiresAt = conn.ExpiresAt
			c.Scope = conn.Scope
			c.UpdatedAt = now
			f.conns[id] = c
			out := c
			return &out, nil
		}
	}
	stored := *conn
	stored.ID = primitive.NewObjectID()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.conns[stored.ID] = stored
	out := stored
	return &out, nil
}

func (f *fakeConnectionRepo) GetByUserAndProvider(_ context.Context, userID primitive.ObjectID, p domain.Provider) (*domain.Connection, error) {
	for _, c := range f.conns {
		if c.UserID == userID && c.Provider == p {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConnectionRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Connection, error) {
	var out []domain.Connection
	for _, c := range f.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) GetByProviderUserID(_ context.Context, p domain.Provider, providerUserID string) (*domain.Connection, error) {
	for _, c := range f.conns {
		if c.Provider == p && c.ProviderUserID == providerUserID {
			out := c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConnectionRepo) GetExpiring(_ context.Context, cutoff time.Time) ([]domain.Connection, error) {
	var out []domain.Connection
	for _, c := range f.conns {
		if c.ExpiresAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) UpdateTokens(_ context.Context, id primitive.ObjectID, accessToken, refreshToken string, expiresAt time.Time) error {
	c, ok := f.conns[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.AccessToken = accessToken
	c.RefreshToken = refreshToken
	c.ExpiresAt = expiresAt
	c.UpdatedAt = nextTime()
	f.conns[id] = c
	return nil
}

func (f *fakeConnectionRepo) UpdateLastSync(_ context.Context, id primitive.ObjectID, at time.Time) error {
	c, ok := f.conns[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.LastSyncAt = &at
	c.UpdatedAt = nextTime()
	f.conns[id] = c
	return nil
}

func (f *fakeConnectionRepo) Delete(_ context.Context, userID primitive.ObjectID, p domain.Provider) error {
	for id, c := range f.conns {
		if c.UserID == userID && c.Provider == p {
			delete(f.conns, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- Files ---

type fakeFileRepo struct {
	files map[primitive.ObjectID]domain.FileObject
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[primitive.ObjectID]domain.FileObject)}
}

func (f *fakeFileRepo) Create(_ context.Context, file *domain.FileObject) (primitive.ObjectID, error) {
	file.ID = primitive.NewObjectID()
	file.UploadedAt = nextTime()
	f.files[file.ID] = *file
	return file.ID, nil
}

func (f *fakeFileRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.FileObject, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := file
	return &out, nil
}

func (f *fakeFileRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := f.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.files, id)
	return nil
}

// --- Object storage ---

type fakeFileStorage struct {
	objects map[string]storage.ObjectInfo
	deleted []string
}

func newFakeFileStorage() *fakeFileStorage {
	return &fakeFileStorage{objects: make(map[string]storage.ObjectInfo)}
}

// put simulates the client completing its presigned upload.
func (f *fakeFileStorage) put(objectKey, contentType string, size int64) {
	f.objects[objectKey] = storage.ObjectInfo{Size: size, ContentType: contentType}
}

func (f *fakeFileStorage) GeneratePresignedUploadURL(_ context.Context, objectKey, _ string, _ time.Duration) (string, error) {
	return "https://bucket.test/upload/" + objectKey, nil
}

func (f *fakeFileStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://bucket.test/download/" + objectKey, nil
}

func (f *fakeFileStorage) StatObject(_ context.Context, objectKey string) (storage.ObjectInfo, error) {
	info, ok := f.objects[objectKey]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return info, nil
}

func (f *fakeFileStorage) DeleteObject(_ context.Context, objectKey string) error {
	delete(f.objects, objectKey)
	f.deleted = append(f.deleted, objectKey)
	return nil
}

// --- OAuth state store ---

type fakeStateStore struct {
	states map[string]string
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]string)}
}

func (f *fakeStateStore) Put(_ context.Context, state, payload string) error {
	f.states[state] = payload
	return nil
}

func (f *fakeStateStore) Take(_ context.Context, state string) (string, error) {
	payload, ok := f.states[state]
	if !ok {
		return "", cache.ErrStateNotFound
	}
	delete(f.states, state)
	return payload, nil
}

func (f *fakeStateStore) Ping(context.Context) error { return nil }

// --- Provider client ---

// fakeProviderClient lets each test script the provider's behavior through
// function fields; unset fields yield zero values without error.
type fakeProviderClient struct {
	name domain.Provider

	exchangeFn func(code string) (provider.TokenPair, provider.Identity, error)
	refreshFn  func(refreshToken string) (provider.TokenPair, error)
	fetchFn    func(accessToken string, after time.Time) ([]provider.Activity, error)

	deauthorizeErr   error
	deauthorizeCalls int
	fetchCalls       int
}

func (f *fakeProviderClient) Name() domain.Provider { return f.name }

func (f *fakeProviderClient) AuthCodeURL(state string) string {
	return "https://" + string(f.name) + ".test/oauth/authorize?state=" + state
}

func (f *fakeProviderClient) Exchange(_ context.Context, code string) (provider.TokenPair, provider.Identity, error) {
	if f.exchangeFn == nil {
		return provider.TokenPair{}, provider.Identity{}, nil
	}
	return f.exchangeFn(code)
}

func (f *fakeProviderClient) Refresh(_ context.Context, refreshToken string) (provider.TokenPair, error) {
	if f.refreshFn == nil {
		return provider.TokenPair{}, nil
	}
	return f.refreshFn(refreshToken)
}

func (f *fakeProviderClient) Deauthorize(context.Context, string) error {
	f.deauthorizeCalls++
	return f.deauthorizeErr
}

func (f *fakeProviderClient) FetchActivities(_ context.Context, accessToken string, after time.Time) ([]provider.Activity, error) {
	f.fetchCalls++
	if f.fetchFn == nil {
		return nil, nil
	}
	return f.fetchFn(accessToken, after)
}
