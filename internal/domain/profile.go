package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Theme controls the client appearance preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// ValidTheme reports whether t is a known appearance preference.
func ValidTheme(t Theme) bool {
	switch t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return true
	}
	return false
}

// Units controls how distances/weights are rendered for the athlete.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ValidUnits reports whether u is a known unit system.
func ValidUnits(u Units) bool {
	switch u {
	case UnitsMetric, UnitsImperial:
		return true
	}
	return false
}

// Profile holds the athlete profile for a user. Exactly one profile exists
// per user; it is created by the onboarding wizard and updated afterwards.
// Performance numbers (FTP, heart rates) are optional because the wizard
// collects them in later steps.
type Profile struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"` // Unique; one profile per user
	FullName  string             `bson:"fullName" json:"fullName"`
	Sex       string             `bson:"sex,omitempty" json:"sex,omitempty"`
	BirthDate *time.Time         `bson:"birthDate,omitempty" json:"birthDate,omitempty"`

	// Performance metrics
	WeightKG         *float64 `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	HeightCM         *float64 `bson:"heightCm,omitempty" json:"heightCm,omitempty"`
	FTPWatts         *int     `bson:"ftpWatts,omitempty" json:"ftpWatts,omitempty"` // Functional Threshold Power
	MaxHeartRate     *int     `bson:"maxHeartRate,omitempty" json:"maxHeartRate,omitempty"`
	RestingHeartRate *int     `bson:"restingHeartRate,omitempty" json:"restingHeartRate,omitempty"`
	WeeklyHours      *int     `bson:"weeklyHours,omitempty" json:"weeklyHours,omitempty"` // Target training volume
	Goals            []string `bson:"goals,omitempty" json:"goals,omitempty"`

	// Wizard progress
	OnboardingStep     int  `bson:"onboardingStep" json:"onboardingStep"`
	OnboardingComplete bool `bson:"onboardingComplete" json:"onboardingComplete"`

	// Locale / appearance settings
	Locale   string `bson:"locale" json:"locale"`     // BCP 47 tag, e.g. "en-US"
	Theme    Theme  `bson:"theme" json:"theme"`       // system / light / dark
	Units    Units  `bson:"units" json:"units"`       // metric / imperial
	Timezone string `bson:"timezone" json:"timezone"` // IANA name, e.g. "Europe/Berlin"

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
