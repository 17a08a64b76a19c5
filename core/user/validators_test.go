package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/studentbuddy/backend/core"
)

func TestNewUser_passwordPolicy(t *testing.T) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	commonPasswords = []string{"c0mmon!pass"} // sorted

	tests := []struct {
		name    string
		pwd     string
		wantErr bool
	}{
		{name: "too short", pwd: "Ab1!", wantErr: true},
		{name: "whitespace", pwd: "Ab1! defg", wantErr: true},
		{name: "all numeric", pwd: "12345678", wantErr: true},
		{name: "no digit", pwd: "Gophers!", wantErr: true},
		{name: "no upper", pwd: "g0phers!", wantErr: true},
		{name: "no special", pwd: "G0pherss", wantErr: true},
		{name: "similar to email", pwd: "Jdoe@Test.cd1", wantErr: true},
		{name: "similar to name", pwd: "Jane!Doe123", wantErr: true},
		{name: "common password", pwd: "C0mmon!Pass", wantErr: true},
		{name: "ok", pwd: "G0pher!sFun"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{Email: "jdoe@test.cd", FullName: "Jane Doe", Password: tt.pwd}
			err := nu.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		allowed []string
		want    bool
	}{
		{name: "empty set allows everyone", role: RoleStudent, want: true},
		{name: "member", role: RoleAdmin, allowed: AdminRoles, want: true},
		{name: "not a member", role: RoleStudent, allowed: AdminRoles, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAnyRole(tt.role, tt.allowed); got != tt.want {
				t.Errorf("HasAnyRole() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestRolePriority(t *testing.T) {
	if !(RolePriority(RoleSuperAdmin) > RolePriority(RoleAdmin) && RolePriority(RoleAdmin) > RolePriority(RoleStudent)) {
		t.Error("role priorities out of order")
	}
	if RolePriority("Intern") != 0 {
		t.Error("unknown roles must rank below every real role")
	}
}
