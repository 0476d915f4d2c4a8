package header

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Fields
	}{
		{
			name: "strict",
			text: "Worker Process Group ID: 7, Hostname: h1, Executor Kerberos ID: u1, Requesting Kerberos ID: u2",
			want: Fields{"7", "h1", "u1", "u2", LevelStrict},
		},
		{
			name: "strict with surrounding lines and padding",
			text: "preamble\nWorker Process Group ID:  42,  Hostname:  host-a.example  , Executor Kerberos ID: svc_exec , Requesting Kerberos ID: alice  \nbody ERROR\n",
			want: Fields{"42", "host-a.example", "svc_exec", "alice", LevelStrict},
		},
		{
			name: "lenient without requester",
			text: "Worker Process Group ID: 9, Hostname: h2, Executor Kerberos ID: u3\nnext line",
			want: Fields{"9", "h2", "u3", "", LevelLenient},
		},
		{
			name: "requester on the next line is not joined",
			text: "Worker Process Group ID: 9, Hostname: h2, Executor Kerberos ID: u3,\nRequesting Kerberos ID: u4",
			want: Fields{"9", "h2", "u3", "", LevelLenient},
		},
		{
			name: "non numeric worker id",
			text: "Worker Process Group ID: abc, Hostname: h1, Executor Kerberos ID: u1",
			want: Fields{},
		},
		{
			name: "missing executor",
			text: "Worker Process Group ID: 1, Hostname: h1",
			want: Fields{},
		},
		{
			name: "empty",
			text: "",
			want: Fields{},
		},
		{
			name: "crlf line endings",
			text: "Worker Process Group ID: 3, Hostname: h3, Executor Kerberos ID: e3, Requesting Kerberos ID: r3\r\nmore",
			want: Fields{"3", "h3", "e3", "r3", LevelStrict},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if got != tt.want {
				t.Fatalf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"Worker Process Group ID: 7, Hostname: h1, Executor Kerberos ID: u1, Requesting Kerberos ID: u2",
		"garbage \x00\xff text",
		"Worker Process Group ID: , Hostname: , Executor Kerberos ID: ,",
	}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(in)
		if first != second {
			t.Errorf("Parse(%q) not stable: %+v vs %+v", in, first, second)
		}
	}
}

func TestParseLines(t *testing.T) {
	got := ParseLines([]string{"start", "Worker Process Group ID: 5, Hostname: h, Executor Kerberos ID: e, Requesting Kerberos ID: r"})
	if !got.Found() || got.Level != LevelStrict || got.WorkerProcessGroupID != "5" {
		t.Fatalf("unexpected fields %+v", got)
	}
	if ParseLines(nil).Found() {
		t.Fatal("expected no header for empty input")
	}
}

func TestLevelString(t *testing.T) {
	if LevelStrict.String() != "strict" || LevelLenient.String() != "lenient" || LevelNone.String() != "none" {
		t.Fatal("unexpected level names")
	}
}
