package api

import "github.com/okian/jury/pkg/logger"

const defaultMaxTopLimit = 100

// Option configures a Server.
type Option func(*Server)

// WithMaxTopLimit caps the limit accepted by the prize ranking route.
func WithMaxTopLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxTopLimit = n
		}
	}
}

// WithRateLimit limits requests per client IP per minute. Zero disables it.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.rateLimitPerMinute = perMinute
		}
	}
}

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
