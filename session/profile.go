package session

import (
	"context"
	"encoding/json"

	"student-portal/models"
)

const (
	KeyToken   = "token"
	KeyProfile = "profile"

	// legacy denormalized profile keys
	KeyReg   = "reg"
	KeyName  = "name"
	KeyHall  = "hall"
	KeyPhoto = "photo"
)

// Token returns the stored bearer token, or "" when logged out.
func Token(ctx context.Context, store Store) (string, error) {
	return store.Get(ctx, KeyToken)
}

// SaveLogin persists the token and profile. The legacy keys are written too.
func SaveLogin(ctx context.Context, store Store, res models.LoginResult) error {
	raw, err := json.Marshal(res.Profile)
	if err != nil {
		return err
	}

	values := []struct{ key, value string }{
		{KeyToken, res.Token},
		{KeyProfile, string(raw)},
		{KeyReg, res.Profile.Reg},
		{KeyName, res.Profile.Name},
		{KeyHall, res.Profile.Hall},
		{KeyPhoto, res.Profile.Photo},
	}
	for _, v := range values {
		if err := store.Set(ctx, v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}

// LoadProfile reads the structured profile record and falls back to the
// scattered legacy keys. It returns nil when neither shape is present.
func LoadProfile(ctx context.Context, store Store) (*models.Profile, error) {
	raw, err := store.Get(ctx, KeyProfile)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var p models.Profile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
	}

	var p models.Profile
	fields := []struct {
		key string
		dst *string
	}{
		{KeyReg, &p.Reg},
		{KeyName, &p.Name},
		{KeyHall, &p.Hall},
		{KeyPhoto, &p.Photo},
	}
	found := false
	for _, f := range fields {
		v, err := store.Get(ctx, f.key)
		if err != nil {
			return nil, err
		}
		if v != "" {
			*f.dst = v
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// Logout removes every session key.
func Logout(ctx context.Context, store Store) error {
	return store.Clear(ctx)
}
