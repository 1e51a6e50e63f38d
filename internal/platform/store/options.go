package store

import "github.com/rs/zerolog"

// Option customizes a Store during Open
type Option func(*Store) error

// WithLogger sets a logger to use inside the store package
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) error {
		s.Log = l
		return nil
	}
}
