package models

import "time"

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User represents an account in a school. Students carry the pass slot and the
// daily quota counter; teachers carry the auto-pass location list.
type User struct {
	ID                   string     `json:"id"`
	Username             string     `json:"username"`
	FirstName            *string    `json:"first_name,omitempty"`
	LastName             *string    `json:"last_name,omitempty"`
	Email                string     `json:"email"`
	Password             string     `json:"-"`
	Role                 Role       `json:"role"`
	GradeLevel           *string    `json:"grade_level,omitempty"`
	AutoPassLocations    []string   `json:"auto_pass_locations,omitempty"`
	Subjects             []string   `json:"subjects,omitempty"`
	Pass                 *Pass      `json:"pass,omitempty"`
	LastReset            *time.Time `json:"last_reset,omitempty"`
	DayPasses            int        `json:"day_passes"`
	FavoriteDestinations []string   `json:"favorite_destinations,omitempty"`
	FavoriteTeachers     []string   `json:"favorite_teachers,omitempty"`
	SchoolID             string     `json:"school_id"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Clone returns a deep copy of the user, including the embedded pass.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.FirstName = cloneString(u.FirstName)
	cp.LastName = cloneString(u.LastName)
	cp.GradeLevel = cloneString(u.GradeLevel)
	cp.AutoPassLocations = cloneStrings(u.AutoPassLocations)
	cp.Subjects = cloneStrings(u.Subjects)
	cp.Pass = u.Pass.Clone()
	cp.LastReset = cloneTime(u.LastReset)
	cp.FavoriteDestinations = cloneStrings(u.FavoriteDestinations)
	cp.FavoriteTeachers = cloneStrings(u.FavoriteTeachers)
	return &cp
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// School holds the per-school pass policy: the daily quota and the list of
// valid destination locations.
type School struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Domain         string    `json:"domain"`
	AdminFirstName string    `json:"admin_first_name"`
	AdminLastName  string    `json:"admin_last_name"`
	AdminEmail     string    `json:"admin_email"`
	MaxPassesDaily int       `json:"max_passes_daily"`
	Locations      []string  `json:"locations"`
	AdminID        string    `json:"admin_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasLocation reports whether the location is a valid destination for the school.
func (s *School) HasLocation(location string) bool {
	for _, l := range s.Locations {
		if l == location {
			return true
		}
	}
	return false
}
