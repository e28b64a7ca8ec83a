package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"habita/internal/app/services/auth"
	"habita/internal/app/uow"
	domainproperty "habita/internal/domain/property"
	"habita/internal/domain/shared/money"
	domainuser "habita/internal/domain/user"
)

// Actor is one entry of the actors directory file.
type Actor struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
	Secret  string   `json:"secret,omitempty"`
	KeyHash string   `json:"key_hash,omitempty"`
}

// Property is one entry of the properties fixture file.
type Property struct {
	ID            string      `json:"id"`
	HostID        string      `json:"host_id"`
	Title         string      `json:"title"`
	PricePerNight money.Money `json:"price_per_night"`
	MaxGuests     int         `json:"max_guests"`
}

type SecretGenerator interface {
	NewSecret() (string, error)
}

func LoadActors(path string) ([]Actor, error) {
	var out []Actor
	return out, readJSON(path, &out)
}

func LoadProperties(path string) ([]Property, error) {
	var out []Property
	return out, readJSON(path, &out)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fixtures: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("fixtures: decode %s: %w", path, err)
	}
	return nil
}

// SeedActors provisions every actor. Actors with neither secret nor key hash get a generated
// secret, and the resulting API key is logged once so it can be handed out.
func SeedActors(ctx context.Context, svc *auth.Service, actors []Actor, secrets SecretGenerator, now time.Time, logger *slog.Logger) error {
	for _, a := range actors {
		roles := make([]domainuser.Role, 0, len(a.Roles))
		for _, raw := range a.Roles {
			role, err := domainuser.ParseRole(raw)
			if err != nil {
				return fmt.Errorf("fixtures: actor %s: %w", a.ID, err)
			}
			roles = append(roles, role)
		}
		secret := a.Secret
		generated := false
		if secret == "" && a.KeyHash == "" {
			token, err := secrets.NewSecret()
			if err != nil {
				return err
			}
			secret, generated = token, true
		}
		_, err := svc.Provision(ctx, domainuser.CreateParams{
			ID:        domainuser.ID(a.ID),
			Name:      a.Name,
			KeyHash:   a.KeyHash,
			Roles:     roles,
			CreatedAt: now,
		}, secret)
		if err != nil {
			return fmt.Errorf("fixtures: actor %s: %w", a.ID, err)
		}
		if generated && logger != nil {
			logger.Warn("generated api key", "user_id", a.ID, "api_key", a.ID+"."+secret)
		}
	}
	return nil
}

// SeedProperties upserts properties in one unit of work.
func SeedProperties(ctx context.Context, factory uow.UoWFactory, props []Property, now time.Time) error {
	if len(props) == 0 {
		return nil
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := uow.Attach(ctx, unit)
	for _, fx := range props {
		p, err := domainproperty.New(domainproperty.CreateParams{
			ID:            domainproperty.ID(fx.ID),
			Host:          domainuser.ID(fx.HostID),
			Title:         fx.Title,
			PricePerNight: fx.PricePerNight,
			MaxGuests:     fx.MaxGuests,
			Now:           now,
		})
		if err != nil {
			_ = unit.Rollback(execCtx)
			return fmt.Errorf("fixtures: property %s: %w", fx.ID, err)
		}
		if err := unit.Properties().Save(execCtx, p); err != nil {
			_ = unit.Rollback(execCtx)
			return err
		}
	}
	return unit.Commit(execCtx)
}

// Demo is the directory used in dev when no fixture files are configured.
func Demo() ([]Actor, []Property) {
	actors := []Actor{
		{ID: "admin", Name: "Administrator", Roles: []string{"admin"}},
		{ID: "host-1", Name: "Ana Host", Roles: []string{"host", "guest"}},
		{ID: "guest-1", Name: "Gabriel Guest", Roles: []string{"guest"}},
		{ID: "guest-2", Name: "Grace Guest", Roles: []string{"guest"}},
	}
	props := []Property{
		{ID: "prop-1", HostID: "host-1", Title: "Lakeside cabin", PricePerNight: money.Must(10000, "USD"), MaxGuests: 4},
		{ID: "prop-2", HostID: "host-1", Title: "City loft", PricePerNight: money.Must(7500, "USD"), MaxGuests: 2},
	}
	return actors, props
}
