package api

import "golang.org/x/time/rate"

// Option configures a Server.
type Option func(*Server)

// WithRateLimit throttles mutating routes to rps requests per second with
// the given burst. A zero rps leaves them unthrottled.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = &rateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}
