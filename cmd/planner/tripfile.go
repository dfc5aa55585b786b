package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/interval"
	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/domain/trip"
)

// tripFile is the on-disk description of a trip: the trip itself, its
// members with availability, and the candidate activity pool. Times
// are "HH:MM" strings, dates are "2006-01-02", durations use Go
// syntax ("90m").
type tripFile struct {
	Trip       fileTrip           `yaml:"trip"`
	Members    []fileMember       `yaml:"members"`
	Activities []fileActivity     `yaml:"activities"`
	Prefs      map[string]float64 `yaml:"preferences"`
	Seed       int64              `yaml:"seed"`
}

type fileTrip struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	Currency  string `yaml:"currency"`
	Budget    int64  `yaml:"budget"`
}

type fileMember struct {
	ID           string               `yaml:"id"`
	Name         string               `yaml:"name"`
	Role         string               `yaml:"role"`
	Availability map[int][]fileWindow `yaml:"availability"`
}

type fileActivity struct {
	ID             string                  `yaml:"id"`
	Name           string                  `yaml:"name"`
	Category       string                  `yaml:"category"`
	Lat            float64                 `yaml:"lat"`
	Lon            float64                 `yaml:"lon"`
	Cost           int64                   `yaml:"cost"`
	Duration       string                  `yaml:"duration"`
	OpeningHours   map[string][]fileWindow `yaml:"opening_hours"`
	AllowOverflow  bool                    `yaml:"allow_overflow"`
	PersonInCharge string                  `yaml:"person_in_charge"`
}

type fileWindow struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func loadTripFile(path string) (*tripFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trip file: %w", err)
	}
	var tf tripFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse trip file: %w", err)
	}
	return &tf, nil
}

func (tf *tripFile) build() (trip.Trip, []trip.Member, []activity.Activity, error) {
	start, err := time.Parse("2006-01-02", tf.Trip.StartDate)
	if err != nil {
		return trip.Trip{}, nil, nil, fmt.Errorf("start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", tf.Trip.EndDate)
	if err != nil {
		return trip.Trip{}, nil, nil, fmt.Errorf("end_date: %w", err)
	}

	members := make([]trip.Member, 0, len(tf.Members))
	memberIDs := make([]string, 0, len(tf.Members))
	for _, m := range tf.Members {
		avail := make(map[int][]interval.Interval, len(m.Availability))
		for day, windows := range m.Availability {
			ivs, err := parseWindows(windows)
			if err != nil {
				return trip.Trip{}, nil, nil, fmt.Errorf("member %s day %d: %w", m.ID, day, err)
			}
			avail[day] = ivs
		}
		members = append(members, trip.Member{
			ID:           m.ID,
			Name:         m.Name,
			Role:         trip.Role(m.Role),
			Availability: avail,
		})
		memberIDs = append(memberIDs, m.ID)
	}

	acts := make([]activity.Activity, 0, len(tf.Activities))
	for _, a := range tf.Activities {
		dur, err := time.ParseDuration(a.Duration)
		if err != nil {
			return trip.Trip{}, nil, nil, fmt.Errorf("activity %s duration: %w", a.ID, err)
		}
		hours := make(map[time.Weekday][]interval.Interval, len(a.OpeningHours))
		for day, windows := range a.OpeningHours {
			wd, ok := weekdays[day]
			if !ok {
				return trip.Trip{}, nil, nil, fmt.Errorf("activity %s: unknown weekday %q", a.ID, day)
			}
			ivs, err := parseWindows(windows)
			if err != nil {
				return trip.Trip{}, nil, nil, fmt.Errorf("activity %s %s: %w", a.ID, day, err)
			}
			hours[wd] = ivs
		}
		acts = append(acts, activity.Activity{
			ID:             a.ID,
			Name:           a.Name,
			Category:       activity.Category(a.Category),
			Location:       activity.GeoPoint{Lat: a.Lat, Lon: a.Lon, Resolved: true},
			Cost:           a.Cost,
			Duration:       dur,
			OpeningHours:   hours,
			AllowOverflow:  a.AllowOverflow,
			PersonInCharge: a.PersonInCharge,
			Status:         activity.StatusProposed,
		})
	}

	t := trip.Trip{
		ID:            tf.Trip.ID,
		Name:          tf.Trip.Name,
		StartDate:     start,
		EndDate:       end,
		Currency:      tf.Trip.Currency,
		BudgetCeiling: tf.Trip.Budget,
		MemberIDs:     memberIDs,
	}
	return t, members, acts, nil
}

func (tf *tripFile) preferences() map[activity.Category]float64 {
	if len(tf.Prefs) == 0 {
		return nil
	}
	prefs := make(map[activity.Category]float64, len(tf.Prefs))
	for cat, w := range tf.Prefs {
		prefs[activity.Category(cat)] = w
	}
	return prefs
}

func parseWindows(windows []fileWindow) ([]interval.Interval, error) {
	ivs := make([]interval.Interval, 0, len(windows))
	for _, w := range windows {
		from, err := interval.ParseMinute(w.From)
		if err != nil {
			return nil, err
		}
		to, err := interval.ParseMinute(w.To)
		if err != nil {
			return nil, err
		}
		ivs = append(ivs, interval.Interval{Start: from, End: to})
	}
	return ivs, nil
}

func printSchedule(w io.Writer, tf *tripFile, s *schedule.Schedule) error {
	names := make(map[string]string, len(tf.Activities))
	for _, a := range tf.Activities {
		names[a.ID] = a.Name
	}

	type outBlock struct {
		Day      int      `yaml:"day"`
		Start    string   `yaml:"start"`
		End      string   `yaml:"end"`
		Activity string   `yaml:"activity"`
		Members  []string `yaml:"members"`
	}
	out := struct {
		Trip    string     `yaml:"trip"`
		Version uint64     `yaml:"version"`
		Blocks  []outBlock `yaml:"blocks"`
	}{Trip: s.TripID, Version: s.Version}

	s.Sort()
	for _, b := range s.Blocks {
		span := b.Span()
		name := names[b.ActivityID]
		if name == "" {
			name = b.ActivityID
		}
		out.Blocks = append(out.Blocks, outBlock{
			Day:      b.Day,
			Start:    span.Start.String(),
			End:      span.End.String(),
			Activity: name,
			Members:  b.MemberIDs,
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
