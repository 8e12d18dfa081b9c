package sharelink

import "time"

// ShareLink grants tokenized public access to a single file, optionally
// guarded by a password, an expiry and a download quota.
type ShareLink struct {
	ID            int64      `gorm:"primaryKey"`
	PublicID      string     `gorm:"column:public_id;uniqueIndex;not null"`
	FileID        int64      `gorm:"column:file_id;not null;index"`
	Token         string     `gorm:"column:token;uniqueIndex;not null"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	MaxDownloads  *int64     `gorm:"column:max_downloads"`
	DownloadCount int64      `gorm:"column:download_count;default:0"`
	PasswordHash  *string    `gorm:"column:password_hash"`
	RevokedAt     *time.Time `gorm:"column:revoked_at"`
	CreatedBy     int64      `gorm:"column:created_by;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;default:now()"`
}

func (ShareLink) TableName() string {
	return "share_links"
}

// IsAccessible reports whether the link can still be used at the given time.
// Revocation wins over everything else.
func (s *ShareLink) IsAccessible(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return false
	}
	if s.MaxDownloads != nil && s.DownloadCount >= *s.MaxDownloads {
		return false
	}
	return true
}

func (s *ShareLink) RequiresPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}
