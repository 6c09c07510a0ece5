package postgres

import (
	"strings"
	"testing"
)

func TestConfig_IsValid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{
			name: "valid config",
			cfg: Config{
				User:     "user",
				Password: "password",
				Host:     "localhost",
				Port:     "5432",
				DBName:   "bluelog",
			},
			want: true,
		},
		{
			name: "empty config",
			cfg:  Config{},
			want: false,
		},
		{
			name: "config with empty DBName",
			cfg: Config{
				User:     "user",
				Password: "password",
				Host:     "localhost",
				Port:     "5432",
				DBName:   "",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsValid(); got != tt.want {
				t.Errorf("Config.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_String_masksPassword(t *testing.T) {
	cfg := Config{
		User:     "user",
		Password: "hunter2",
		Host:     "localhost",
		Port:     "5432",
		DBName:   "bluelog",
	}

	s := cfg.String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("want the password masked, got %q", s)
	}
	if !strings.Contains(s, "*******") {
		t.Errorf("want asterisks in place of the password, got %q", s)
	}
}
