package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Field limits shared by forms, services and schemas.
const (
	MaxUsernameLen = 64
	MaxEmailLen    = 120
	MaxAboutMeLen  = 140
)

// User represents a registered account of the microblog.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	AboutMe      string
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Avatar returns the Gravatar identicon URL for the user's email at the given pixel size.
func (u *User) Avatar(size int) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=%d", hex.EncodeToString(sum[:]), size)
}
