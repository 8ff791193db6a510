package users

// Role represents a dashboard role carried in the access token claims
type Role string

const (
	RoleHospitalAdmin   Role = "HOSPITAL_ADMIN"
	RoleAmbulanceDriver Role = "AMBULANCE_DRIVER"
	RoleDoctor          Role = "DOCTOR"
	RoleNurse           Role = "NURSE"
)

// Well-known client routes
const (
	RouteLogin     = "/login"
	RouteDashboard = "/dashboard"
)

// HomeRoute returns the dashboard root for a role. Clinician roles share
// the doctor dashboard.
func (r Role) HomeRoute() string {
	switch r {
	case RoleHospitalAdmin:
		return "/admin/dashboard"
	case RoleAmbulanceDriver:
		return "/driver/dashboard"
	case RoleDoctor, RoleNurse:
		return "/doctor/dashboard"
	}
	return RouteDashboard
}

// Valid reports whether the role is one the dashboard knows how to route
func (r Role) Valid() bool {
	switch r {
	case RoleHospitalAdmin, RoleAmbulanceDriver, RoleDoctor, RoleNurse:
		return true
	}
	return false
}

// User is the client-side identity derived from a decoded access token.
// It exists only while a session is authenticated.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"isEmailVerified"`
}

// DisplayName returns the user's full name for UI chrome
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
