package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/config"
	"github.com/careloop/provider-availability/internal/db"
	redisclient "github.com/careloop/provider-availability/internal/redis"
	"github.com/careloop/provider-availability/internal/schedule"
)

const (
	providerCount = 40
	bookingTarget = 25 // slots booked per provider, at most
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var scheduleTemplates = []struct {
	title    string
	start    string
	end      string
	duration int
	buffer   int
	kind     schedule.AppointmentKind
	location schedule.LocationKind
}{
	{"Morning Clinic", "08:30", "12:00", 30, 0, schedule.KindConsultation, schedule.LocationInPerson},
	{"Afternoon Consults", "13:00", "17:00", 45, 5, schedule.KindConsultation, schedule.LocationInPerson},
	{"Telehealth Block", "18:00", "20:00", 20, 0, schedule.KindFollowUp, schedule.LocationVirtual},
	{"Procedure Block", "09:00", "11:00", 60, 10, schedule.KindProcedure, schedule.LocationInPerson},
	{"Routine Checkups", "14:00", "16:30", 15, 5, schedule.KindRoutineCheckup, schedule.LocationHybrid},
}

var timezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	logger.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	svc := schedule.NewService(
		schedule.NewPgRepository(pool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		cfg,
	)

	gofakeit.Seed(time.Now().UnixNano())

	providerIDs, err := seedProviders(ctx, logger, pool, providerCount)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}

	ctx = logger.WithContext(ctx)
	if err := seedDefinitions(ctx, logger, svc, providerIDs); err != nil {
		logger.Fatal().Err(err).Msg("seed definitions")
	}
	if err := seedBookings(ctx, logger, svc, providerIDs); err != nil {
		logger.Fatal().Err(err).Msg("seed bookings")
	}

	logger.Info().Msg("seed complete")
}

func seedProviders(ctx context.Context, logger zerolog.Logger, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding providers")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Msg("providers seeded")
	return ids, nil
}

// seedDefinitions creates schedules through the service so slots generate and
// conflicting templates are rejected the same way they would be in production.
func seedDefinitions(ctx context.Context, logger zerolog.Logger, svc *schedule.Service, providerIDs []uuid.UUID) error {
	logger.Info().Msg("seeding schedule definitions")

	created, skipped := 0, 0
	for _, providerID := range providerIDs {
		n := gofakeit.Number(1, 3)
		for i := 0; i < n; i++ {
			tpl := scheduleTemplates[gofakeit.Number(0, len(scheduleTemplates)-1)]

			start, _ := schedule.ParseTimeOfDay(tpl.start)
			end, _ := schedule.ParseTimeOfDay(tpl.end)

			in := schedule.DefinitionInput{
				Title:           tpl.title,
				Recurrence:      schedule.RecurrenceWeekly,
				DayOfWeek:       gofakeit.Number(1, 5),
				StartDate:       time.Now().UTC(),
				StartTime:       start,
				EndTime:         end,
				SlotDuration:    tpl.duration,
				Buffer:          tpl.buffer,
				Timezone:        timezones[gofakeit.Number(0, len(timezones)-1)],
				LocationKind:    tpl.location,
				AppointmentKind: tpl.kind,
			}

			_, err := svc.CreateAvailability(ctx, providerID, in)
			if err != nil {
				var conflict *schedule.ConflictError
				if errors.As(err, &conflict) {
					skipped++
					continue
				}
				return err
			}
			created++
		}
	}

	logger.Info().Int("created", created).Int("skipped_conflicts", skipped).Msg("definitions seeded")
	return nil
}

// seedBookings books a slice of the generated slots with fake patients so
// utilization numbers and transition endpoints have data to work with.
func seedBookings(ctx context.Context, logger zerolog.Logger, svc *schedule.Service, providerIDs []uuid.UUID) error {
	logger.Info().Msg("seeding bookings")

	booked := 0
	for _, providerID := range providerIDs {
		status := schedule.SlotAvailable
		slots, err := svc.ListSlots(ctx, schedule.SlotQuery{
			ProviderID: providerID,
			Status:     &status,
			Limit:      100,
		})
		if err != nil {
			return err
		}

		target := bookingTarget
		for _, slot := range slots {
			if target == 0 {
				break
			}
			if gofakeit.Number(0, 2) != 0 {
				continue
			}

			email := gofakeit.Email()
			phone := gofakeit.Phone()
			reason := gofakeit.SentenceSimple()
			details := schedule.BookingDetails{
				PatientID:    uuid.New(),
				PatientName:  gofakeit.Name(),
				PatientEmail: &email,
				PatientPhone: &phone,
				VisitReason:  &reason,
			}

			updated, err := svc.BookSlot(ctx, slot.ID, details)
			if err != nil {
				// Policy rejections (lead time) and races are expected here.
				continue
			}
			if updated.Status == schedule.SlotPendingConfirmation && gofakeit.Bool() {
				if _, err := svc.ConfirmSlot(ctx, updated.ID); err != nil {
					continue
				}
			}
			booked++
			target--
		}
	}

	logger.Info().Int("booked", booked).Msg("bookings seeded")
	return nil
}
