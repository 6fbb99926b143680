// Package ratelimit throttles reservation attempts per customer and per IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the system time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	MaxPerClient int           // Max attempts per customer within Window (default: 10)
	MaxPerIP     int           // Max attempts per IP within Window (default: 30)
	Window       time.Duration // Sliding window length (default: 15m)

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPerClient: 10,
		MaxPerIP:     30,
		Window:       15 * time.Minute,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

// window holds the attempt times inside the current sliding window, oldest first.
type window struct {
	hits []time.Time
}

func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]
}

// Limiter implements two-layer sliding window limiting.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.Mutex
	// Keyed by hash of identifier or IP
	byClient map[string]*window
	byIP     map[string]*window

	// Cleanup goroutine management
	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byClient:      make(map[string]*window),
		byIP:          make(map[string]*window),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Allow checks both layers and, when allowed, records the attempt.
// An empty identifier is limited by IP only.
func (l *Limiter) Allow(identifier, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	cutoff := now.Add(-l.config.Window)
	idKey := l.hashKey("client:", normalizeIdentifier(identifier))
	ipKey := l.hashKey("ip:", ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	var client *window
	if normalizeIdentifier(identifier) != "" && l.config.MaxPerClient > 0 {
		client = l.windowFor(l.byClient, idKey, cutoff)
		if len(client.hits) >= l.config.MaxPerClient {
			return LimitResult{
				Allowed:    false,
				RetryAfter: client.hits[0].Add(l.config.Window).Sub(now),
				Reason:     "client_limit",
			}
		}
	}

	var byIP *window
	if l.config.MaxPerIP > 0 {
		byIP = l.windowFor(l.byIP, ipKey, cutoff)
		if len(byIP.hits) >= l.config.MaxPerIP {
			return LimitResult{
				Allowed:    false,
				RetryAfter: byIP.hits[0].Add(l.config.Window).Sub(now),
				Reason:     "ip_limit",
			}
		}
	}

	if client != nil {
		client.hits = append(client.hits, now)
	}
	if byIP != nil {
		byIP.hits = append(byIP.hits, now)
	}
	return LimitResult{Allowed: true}
}

func (l *Limiter) windowFor(m map[string]*window, key string, cutoff time.Time) *window {
	w := m[key]
	if w == nil {
		w = &window{}
		m[key] = w
	}
	w.prune(cutoff)
	return w
}

// Reset clears the customer's counter.
func (l *Limiter) Reset(identifier string) {
	idKey := l.hashKey("client:", normalizeIdentifier(identifier))
	l.mu.Lock()
	delete(l.byClient, idKey)
	l.mu.Unlock()
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	cutoff := l.clock.Now().Add(-l.config.Window)
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range []map[string]*window{l.byClient, l.byIP} {
		for k, w := range m {
			w.prune(cutoff)
			if len(w.hits) == 0 {
				delete(m, k)
			}
		}
	}
}

// GetClientIP extracts the client IP from a request.
// When trustProxy is true, uses the rightmost IP from X-Forwarded-For (added by your proxy).
// When trustProxy is false, ignores X-Forwarded-For entirely (prevents spoofing).
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			// All IPs are private, use the last one
			return strings.TrimSpace(parts[len(parts)-1])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
			return r.RemoteAddr
		}
		if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
			candidate := r.RemoteAddr[:idx]
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
		return r.RemoteAddr
	}
	return ip
}

// privateNetworks holds parsed CIDR ranges for private/reserved IPs.
var privateNetworks []*net.IPNet

func init() {
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10", // Link-local
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

// isPrivateIP checks if an IP is in a private/reserved range, including
// IPv4-mapped IPv6 addresses.
func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks a customer id or phone for logging, keeping the
// last four characters.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeIdentifier(identifier)
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a rate limit event with sanitized identifier.
func LogRateLimitExceeded(identifier, ip, reason string) {
	log.Warn().
		Str("event", "rate_limit_exceeded").
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Reservation rate limit exceeded")
}
