package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ConnectionConfig describes how to reach a target database.
// It is resolved per call by the connection collaborator and never persisted
// by the engine.
type ConnectionConfig struct {
	Type     string            `json:"type"` // postgres, mysql, mssql, mongodb
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	User     string            `json:"user"`
	Password string            `json:"-"`
	Database string            `json:"database"`
	TLS      bool              `json:"tls"`
	Options  map[string]string `json:"options,omitempty"`
}

// Fingerprint identifies the physical database and credentials behind a config.
// The password only contributes through its hash, so the key can be logged.
func (c ConnectionConfig) Fingerprint() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(c.Type)))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(c.Host)))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(c.Port))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(c.Database))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(c.User))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(xxhash.Sum64String(c.Password), 16))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(c.TLS))

	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, c.Options[k])
	}
	return fmt.Sprintf("%s:%016x", strings.ToLower(c.Type), xxhash.Sum64String(b.String()))
}

// ServiceConnection is the default store behind connection resolution:
// one row per (service, environment).
type ServiceConnection struct {
	ID             uint   `gorm:"primaryKey;column:id" json:"id"`
	ServiceID      string `gorm:"column:service_id;size:64;uniqueIndex:ux_service_env" json:"serviceId"`
	Environment    string `gorm:"column:environment;size:32;uniqueIndex:ux_service_env" json:"environment"`
	OrganizationID string `gorm:"column:organization_id;size:64" json:"organizationId"`
	ConnectionID   string `gorm:"column:connection_id;size:64" json:"connectionId"`
	DBType         string `gorm:"column:db_type;size:16" json:"dbType"`
	Host           string `gorm:"column:host;size:255" json:"host"`
	Port           int    `gorm:"column:port" json:"port"`
	Username       string `gorm:"column:username;size:128" json:"username"`
	Password       string `gorm:"column:password;size:255" json:"-"` // encryption at rest belongs to the secrets collaborator
	DatabaseName   string `gorm:"column:database_name;size:128" json:"databaseName"`
	TLS            bool   `gorm:"column:tls" json:"tls"`
}

// TableName specifies the static table name for GORM.
func (ServiceConnection) TableName() string {
	return "service_connections"
}

// Config converts the stored row into a ConnectionConfig.
func (s ServiceConnection) Config() ConnectionConfig {
	return ConnectionConfig{
		Type:     strings.ToLower(s.DBType),
		Host:     s.Host,
		Port:     s.Port,
		User:     s.Username,
		Password: s.Password,
		Database: s.DatabaseName,
		TLS:      s.TLS,
	}
}
