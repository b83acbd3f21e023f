package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testInstance(userID, planID primitive.ObjectID) *domain.PlanInstance {
	return &domain.PlanInstance{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		PlanID:    planID,
		PlanName:  "Base Builder",
		StartDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		Status:    domain.InstanceStatusActive,
	}
}

func TestCreateInstanceEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	userID := primitive.NewObjectID()
	planID := primitive.NewObjectID()
	token := bearerToken(t, userID, domain.RoleAthlete)

	var gotStart time.Time
	svcs.schedule.createInstanceFn = func(ctx context.Context, uid, pid primitive.ObjectID, startDate time.Time) (*domain.PlanInstance, error) {
		assert.Equal(t, userID, uid, "Identity must come from the token, not the payload")
		assert.Equal(t, planID, pid)
		gotStart = startDate
		return testInstance(uid, pid), nil
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/plan-instances", token, gin.H{
		"planId": planID.Hex(), "startDate": "2025-03-03",
	})

	require.Equal(t, http.StatusCreated, rec.Code, "Body: %s", rec.Body.String())
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), gotStart)

	resp := decodeBody[PlanInstanceResponse](t, rec)
	assert.Equal(t, "2025-03-03", resp.StartDate, "Dates should serialize as YYYY-MM-DD")
	assert.Equal(t, "2025-03-16", resp.EndDate)
	assert.Equal(t, domain.InstanceStatusActive, resp.Status)
}

func TestCreateInstanceEndpointErrors(t *testing.T) {
	router, svcs := newTestRouter(t)
	token := bearerToken(t, primitive.NewObjectID(), domain.RoleAthlete)

	tests := []struct {
		name       string
		body       gin.H
		serviceErr error
		wantStatus int
	}{
		{"overlapping instance", gin.H{"planId": primitive.NewObjectID().Hex(), "startDate": "2025-03-03"}, service.ErrScheduleConflict, http.StatusConflict},
		{"unknown plan", gin.H{"planId": primitive.NewObjectID().Hex(), "startDate": "2025-03-03"}, service.ErrPlanNotFound, http.StatusNotFound},
		{"malformed plan id", gin.H{"planId": "not-hex", "startDate": "2025-03-03"}, nil, http.StatusBadRequest},
		{"malformed date", gin.H{"planId": primitive.NewObjectID().Hex(), "startDate": "03/03/2025"}, nil, http.StatusBadRequest},
		{"missing startDate", gin.H{"planId": primitive.NewObjectID().Hex()}, nil, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svcs.schedule.createInstanceFn = func(ctx context.Context, uid, pid primitive.ObjectID, startDate time.Time) (*domain.PlanInstance, error) {
				return nil, tc.serviceErr
			}
			rec := doJSON(t, router, http.MethodPost, "/api/v1/plan-instances", token, tc.body)
			assertErrorBody(t, rec, tc.wantStatus)
		})
	}
}

func TestGetInstanceEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	userID := primitive.NewObjectID()
	token := bearerToken(t, userID, domain.RoleAthlete)
	instance := testInstance(userID, primitive.NewObjectID())

	svcs.schedule.getInstanceFn = func(ctx context.Context, uid, instanceID primitive.ObjectID) (*domain.PlanInstance, []domain.ScheduledWorkout, error) {
		if instanceID != instance.ID {
			return nil, nil, service.ErrInstanceNotFound
		}
		return instance, []domain.ScheduledWorkout{{
			ID:          primitive.NewObjectID(),
			UserID:      uid,
			InstanceID:  instance.ID,
			Date:        instance.StartDate,
			Name:        "Tempo Intervals",
			Sport:       domain.SportRide,
			DurationMin: 60,
			Status:      domain.WorkoutStatusPlanned,
		}}, nil
	}

	t.Run("found", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/plan-instances/"+instance.ID.Hex(), token, nil)

		require.Equal(t, http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		resp := decodeBody[InstanceDetailResponse](t, rec)
		assert.Equal(t, instance.ID.Hex(), resp.Instance.ID)
		require.Len(t, resp.Workouts, 1)
		assert.Equal(t, "Tempo Intervals", resp.Workouts[0].Name)
		assert.Equal(t, "2025-03-03", resp.Workouts[0].Date)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/plan-instances/"+primitive.NewObjectID().Hex(), token, nil)
		assertErrorBody(t, rec, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/plan-instances/12345", token, nil)
		assertErrorBody(t, rec, http.StatusBadRequest)
	})
}

func TestCancelInstanceEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	userID := primitive.NewObjectID()
	token := bearerToken(t, userID, domain.RoleAthlete)
	instance := testInstance(userID, primitive.NewObjectID())

	t.Run("active instance", func(t *testing.T) {
		svcs.schedule.cancelInstanceFn = func(ctx context.Context, uid, instanceID primitive.ObjectID) (*domain.PlanInstance, error) {
			cancelled := *instance
			cancelled.Status = domain.InstanceStatusCancelled
			return &cancelled, nil
		}
		rec := doJSON(t, router, http.MethodDelete, "/api/v1/plan-instances/"+instance.ID.Hex(), token, nil)

		require.Equal(t, http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		resp := decodeBody[PlanInstanceResponse](t, rec)
		assert.Equal(t, domain.InstanceStatusCancelled, resp.Status)
	})

	t.Run("already cancelled", func(t *testing.T) {
		svcs.schedule.cancelInstanceFn = func(ctx context.Context, uid, instanceID primitive.ObjectID) (*domain.PlanInstance, error) {
			return nil, service.ErrInstanceNotActive
		}
		rec := doJSON(t, router, http.MethodDelete, "/api/v1/plan-instances/"+instance.ID.Hex(), token, nil)
		assertErrorBody(t, rec, http.StatusConflict)
	})
}

func TestInsertWorkoutEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	userID := primitive.NewObjectID()
	token := bearerToken(t, userID, domain.RoleAthlete)
	instanceID := primitive.NewObjectID()
	libraryID := primitive.NewObjectID()

	t.Run("inserted", func(t *testing.T) {
		svcs.schedule.insertWorkoutFn = func(ctx context.Context, uid, iid, lid primitive.ObjectID, date time.Time) (*domain.ScheduledWorkout, error) {
			assert.Equal(t, instanceID, iid)
			assert.Equal(t, libraryID, lid)
			return &domain.ScheduledWorkout{
				ID:          primitive.NewObjectID(),
				UserID:      uid,
				InstanceID:  iid,
				Date:        date,
				Name:        "Recovery Spin",
				Sport:       domain.SportRide,
				DurationMin: 45,
				Status:      domain.WorkoutStatusPlanned,
			}, nil
		}
		rec := doJSON(t, router, http.MethodPost, "/api/v1/plan-instances/"+instanceID.Hex()+"/workouts", token, gin.H{
			"libraryWorkoutId": libraryID.Hex(), "date": "2025-03-05",
		})

		require.Equal(t, http.StatusCreated, rec.Code, "Body: %s", rec.Body.String())
		resp := decodeBody[ScheduledWorkoutResponse](t, rec)
		assert.Equal(t, "Recovery Spin", resp.Name)
		assert.Equal(t, "2025-03-05", resp.Date)
	})

	errTests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"date outside instance", service.ErrDateOutsideInstance, http.StatusBadRequest},
		{"cancelled instance", service.ErrInstanceNotActive, http.StatusConflict},
		{"unknown library workout", service.ErrLibraryWorkoutNotFound, http.StatusNotFound},
	}
	for _, tc := range errTests {
		t.Run(tc.name, func(t *testing.T) {
			svcs.schedule.insertWorkoutFn = func(ctx context.Context, uid, iid, lid primitive.ObjectID, date time.Time) (*domain.ScheduledWorkout, error) {
				return nil, tc.serviceErr
			}
			rec := doJSON(t, router, http.MethodPost, "/api/v1/plan-instances/"+instanceID.Hex()+"/workouts", token, gin.H{
				"libraryWorkoutId": libraryID.Hex(), "date": "2025-03-05",
			})
			assertErrorBody(t, rec, tc.wantStatus)
		})
	}
}

func TestScheduleRangeEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	userID := primitive.NewObjectID()
	token := bearerToken(t, userID, domain.RoleAthlete)

	var gotFrom, gotTo time.Time
	svcs.schedule.rangeFn = func(ctx context.Context, uid primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error) {
		gotFrom, gotTo = from, to
		return []domain.ScheduledWorkout{}, nil
	}

	t.Run("passes parsed dates through", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/schedule?from=2025-03-01&to=2025-03-31", token, nil)

		require.Equal(t, http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), gotFrom)
		assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), gotTo)
		assert.Equal(t, "[]", rec.Body.String(), "Empty calendars serialize as an empty array, not null")
	})

	t.Run("missing parameter", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/schedule?from=2025-03-01", token, nil)
		assertErrorBody(t, rec, http.StatusBadRequest)
	})

	t.Run("unparseable parameter", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/schedule?from=2025-03-01&to=March+31", token, nil)
		assertErrorBody(t, rec, http.StatusBadRequest)
	})

	t.Run("range too wide", func(t *testing.T) {
		svcs.schedule.rangeFn = func(ctx context.Context, uid primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error) {
			return nil, service.ErrInvalidDateRange
		}
		rec := doJSON(t, router, http.MethodGet, "/api/v1/schedule?from=2020-01-01&to=2025-12-31", token, nil)
		assertErrorBody(t, rec, http.StatusBadRequest)
	})
}

func TestUpdateWorkoutStatusEndpoint(t *testing.T) {
	router, svcs := newTestRouter(t)
	userID := primitive.NewObjectID()
	token := bearerToken(t, userID, domain.RoleAthlete)
	workoutID := primitive.NewObjectID()

	svcs.schedule.updateStatusFn = func(ctx context.Context, uid, wid primitive.ObjectID, status domain.WorkoutStatus) (*domain.ScheduledWorkout, error) {
		if wid != workoutID {
			return nil, service.ErrScheduledWorkoutNotFound
		}
		return &domain.ScheduledWorkout{
			ID:     wid,
			UserID: uid,
			Date:   time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			Name:   "Tempo Intervals",
			Sport:  domain.SportRide,
			Status: status,
		}, nil
	}

	t.Run("marks skipped", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/api/v1/schedule/workouts/"+workoutID.Hex(), token, gin.H{"status": "skipped"})

		require.Equal(t, http.StatusOK, rec.Code, "Body: %s", rec.Body.String())
		resp := decodeBody[ScheduledWorkoutResponse](t, rec)
		assert.Equal(t, domain.WorkoutStatusSkipped, resp.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/api/v1/schedule/workouts/"+workoutID.Hex(), token, gin.H{"status": "paused"})
		assertErrorBody(t, rec, http.StatusBadRequest)
	})

	t.Run("unknown workout", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/api/v1/schedule/workouts/"+primitive.NewObjectID().Hex(), token, gin.H{"status": "completed"})
		assertErrorBody(t, rec, http.StatusNotFound)
	})
}
