package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                          string    `gorm:"type:uuid;primaryKey"     json:"id"`
	Username                    string    `gorm:"unique;not null"          json:"username"`
	Email                       string    `gorm:"unique;not null"          json:"email"`
	PasswordHash                string    `gorm:"not null"                 json:"-"`
	LicenseID                   *string   `gorm:"type:uuid"                json:"license_id"`
	APIKey                      *string   `json:"-"`
	DiscordWebhookURL           *string   `json:"-"`
	DiscordNotificationsEnabled bool      `gorm:"default:false"            json:"-"`
	CreatedAt                   time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// License rows are seeded out of band; UserID == nil means the key is
// still unclaimed.
type License struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	LicenseKey string     `gorm:"unique;not null"      json:"license_key"`
	UserID     *string    `gorm:"type:uuid;index"      json:"user_id"`
	PlanType   string     `gorm:"not null"             json:"plan_type"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (l *License) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type Task struct {
	ID          string    `gorm:"type:uuid;primaryKey"     json:"id"`
	UserID      string    `gorm:"type:uuid;index;not null" json:"user_id"`
	TaskID      string    `gorm:"not null"                 json:"task_id"`
	Title       string    `gorm:"not null"                 json:"title"`
	ListFile    string    `gorm:"not null"                 json:"list_file"`
	ProxiesFile *string   `json:"proxies_file"`
	MachineID   *string   `json:"machine_id"`
	MachineName *string   `json:"machine_name"`
	MachineIP   *string   `json:"machine_ip"`
	Threads     int       `gorm:"default:50"               json:"threads"`
	Timeout     string    `gorm:"default:'5s'"             json:"timeout"`
	StartFrom   *string   `json:"start_from"`
	Status      string    `gorm:"not null"                 json:"status"`
	Progress    int       `gorm:"default:0"                json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Machine struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string `gorm:"not null"             json:"name"`
	IP       string `gorm:"not null"             json:"ip"`
	Status   string `gorm:"not null"             json:"status"`
	RAMTotal int    `json:"ram_total"`
	CPUCores int    `json:"cpu_cores"`
}

func (m *Machine) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
