package config

import "time"

type SecurityConfig interface {
	GetJWTSecret() string
	GetSessionTTL() time.Duration
	GetRefreshTTL() time.Duration
	GetAdminEmails() []string
	GetAdminCredentials() []string
	GetAdminGateEnabled() bool
	GetVisitorIdleTimeout() time.Duration
	GetMaxVisitors() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Security) GetSessionTTL() time.Duration {
	return GetEnvDuration("SESSION_TTL", 1*time.Hour)
}

func (Security) GetRefreshTTL() time.Duration {
	return GetEnvDuration("REFRESH_TTL", 7*24*time.Hour) // 7 days
}

// GetAdminEmails lists the principal emails that resolve to the admin role.
func (Security) GetAdminEmails() []string {
	return GetEnvList("ADMIN_EMAILS")
}

// GetAdminCredentials returns "id:bcrypt-hash" pairs for the admin gate.
func (Security) GetAdminCredentials() []string {
	return GetEnvList("ADMIN_CREDENTIALS")
}

func (Security) GetAdminGateEnabled() bool {
	return GetEnvBool("ADMIN_GATE_ENABLED", false)
}

func (Security) GetVisitorIdleTimeout() time.Duration {
	return GetEnvDuration("VISITOR_IDLE_TIMEOUT", 30*time.Minute)
}

// GetMaxVisitors caps how many visitors, each with a running session manager, are held at once.
func (Security) GetMaxVisitors() int {
	return GetEnvInt("MAX_VISITORS", 10000)
}
