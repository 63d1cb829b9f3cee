package db

import (
	"context"
	"io"

	"github.com/apex/log"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Fixtures is the document accepted by the seed command.
type Fixtures struct {
	Users     []UserFixture     `yaml:"users"`
	Locations []LocationFixture `yaml:"locations"`
}

type UserFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Phone    string `yaml:"phone"`
	Address  string `yaml:"address"`
}

type LocationFixture struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Street    string   `yaml:"street"`
	Area      string   `yaml:"area"`
	City      string   `yaml:"city"`
	State     string   `yaml:"state"`
	ZipCode   string   `yaml:"zip_code"`
	Country   string   `yaml:"country"`
	Frequency string   `yaml:"frequency"`
	Days      []string `yaml:"days"`
	Time      string   `yaml:"time"`
}

func ParseFixtures(r io.Reader) (Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixtures{}, errors.Wrap(err, "decode fixtures")
	}

	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return Fixtures{}, errors.Errorf("user fixture %d: email and password are required", i)
		}
		if u.Role == "" {
			f.Users[i].Role = "citizen"
		}
	}
	for i, l := range f.Locations {
		if l.Name == "" || l.Type == "" {
			return Fixtures{}, errors.Errorf("location fixture %d: name and type are required", i)
		}
		if l.Country == "" {
			f.Locations[i].Country = "Bangladesh"
		}
	}
	return f, nil
}

// Seed inserts fixtures, skipping users whose email already exists
// and locations whose name already exists.
func Seed(ctx context.Context, pool Pool, f Fixtures) error {
	return RunInTx(ctx, pool, func(tx pgx.Tx) error {
		for _, u := range f.Users {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return errors.Wrapf(err, "hash password for %s", u.Email)
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO users (name, email, password_hash, role, phone, address)
				SELECT $1, $2, $3, $4, $5, $6
				WHERE NOT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($2))`,
				u.Name, u.Email, string(hash), u.Role, u.Phone, u.Address,
			)
			if err != nil {
				return errors.Wrapf(err, "seed user %s", u.Email)
			}
			log.WithFields(log.Fields{"email": u.Email, "inserted": tag.RowsAffected()}).Info("seed user")
		}

		for _, l := range f.Locations {
			var frequency *string
			if l.Frequency != "" {
				frequency = &l.Frequency
			}
			tag, err := tx.Exec(ctx, `
				INSERT INTO locations (name, type, position, street, area, city, state, zip_code, country,
					schedule_frequency, schedule_days, schedule_time)
				SELECT $1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8, $9, $10, $11, $12, $13
				WHERE NOT EXISTS (SELECT 1 FROM locations WHERE name = $1)`,
				l.Name, l.Type, l.Longitude, l.Latitude, l.Street, l.Area, l.City, l.State, l.ZipCode, l.Country,
				frequency, l.Days, l.Time,
			)
			if err != nil {
				return errors.Wrapf(err, "seed location %s", l.Name)
			}
			log.WithFields(log.Fields{"name": l.Name, "inserted": tag.RowsAffected()}).Info("seed location")
		}
		return nil
	})
}
