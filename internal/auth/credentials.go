package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Storage keys used by the flow.
const (
	StateKey = "state"
	CredsKey = "creds"
)

// Credentials are the durable result of a completed authorization.
type Credentials struct {
	Client Client      `json:"client"`
	Token  AccessToken `json:"token"`
}

// PendingAuthState is saved before redirecting the user to the
// authorization server and read back when the redirect returns.
type PendingAuthState struct {
	State  string `json:"state"`
	Client Client `json:"client"`
	URL    string `json:"url"`
}

// LoadCredentials reads the saved credentials. It returns ErrNotFound when
// no flow has completed against s.
func LoadCredentials(ctx context.Context, s Storage) (Credentials, error) {
	var creds Credentials
	if err := load(ctx, s, CredsKey, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// SaveCredentials replaces the saved credentials.
func SaveCredentials(ctx context.Context, s Storage, creds Credentials) error {
	return save(ctx, s, CredsKey, creds)
}

// LoadPendingState reads the state saved by an unfinished flow.
func LoadPendingState(ctx context.Context, s Storage) (PendingAuthState, error) {
	var pending PendingAuthState
	if err := load(ctx, s, StateKey, &pending); err != nil {
		return PendingAuthState{}, err
	}
	return pending, nil
}

// ClearCredentials removes both the saved credentials and any pending state.
func ClearCredentials(ctx context.Context, s Storage) error {
	return errors.Join(s.Delete(ctx, CredsKey), s.Delete(ctx, StateKey))
}

func load(ctx context.Context, s Storage, key string, v any) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode stored %s: %w", key, err)
	}
	return nil
}

func save(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.Save(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
