package types //nolint:revive // types is a valid package name

import "testing"

func TestSessionMeta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    SessionMeta
		wantErr bool
	}{
		{
			name:    "empty session_id",
			meta:    SessionMeta{Source: "row-3"},
			wantErr: true,
		},
		{
			name:    "empty source",
			meta:    SessionMeta{SessionID: "s-1"},
			wantErr: true,
		},
		{
			name: "endpoint optional",
			meta: SessionMeta{SessionID: "s-1", Source: "row-3"},
		},
		{
			name: "fully populated",
			meta: SessionMeta{SessionID: "s-1", Source: "row-3", Endpoint: "ws://127.0.0.1:9000/v1/infer/stream"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
