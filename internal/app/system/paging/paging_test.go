package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int64
	}{
		{"missing", "", DefaultLimit},
		{"valid", "?limit=20", 20},
		{"zero", "?limit=0", DefaultLimit},
		{"negative", "?limit=-4", DefaultLimit},
		{"garbage", "?limit=abc", DefaultLimit},
		{"capped", "?limit=100000", MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/chat/users"+tt.query, nil)
			if got := ParseLimit(r); got != tt.want {
				t.Errorf("ParseLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseSkip(t *testing.T) {
	tests := []struct {
		query string
		want  int64
	}{
		{"", 0},
		{"?skip=10", 10},
		{"?skip=-1", 0},
		{"?skip=x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/chat/users"+tt.query, nil)
			if got := ParseSkip(r); got != tt.want {
				t.Errorf("ParseSkip() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"", Previous},
		{"previous", Previous},
		{"recent", Recent},
		{" RECENT ", Recent},
		{"older", Previous},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDirection(tt.in); got != tt.want {
				t.Errorf("ParseDirection(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigureKeyset(t *testing.T) {
	id := primitive.NewObjectID()

	t.Run("no cursor", func(t *testing.T) {
		cfg, err := ConfigureKeyset("", "", 25)
		if err != nil {
			t.Fatalf("ConfigureKeyset() error = %v", err)
		}
		if cfg.Cursor != nil {
			t.Error("expected nil cursor")
		}
		if cfg.KeysetWindow() != nil {
			t.Error("expected nil window without cursor")
		}
		if cfg.Limit != 25 {
			t.Errorf("Limit = %d, want 25", cfg.Limit)
		}
	})

	t.Run("previous window", func(t *testing.T) {
		cfg, err := ConfigureKeyset("previous", id.Hex(), 10)
		if err != nil {
			t.Fatalf("ConfigureKeyset() error = %v", err)
		}
		win := cfg.KeysetWindow()
		cond, ok := win["_id"].(bson.M)
		if !ok {
			t.Fatalf("window missing _id condition: %v", win)
		}
		if cond["$lt"] != id {
			t.Errorf("window = %v, want $lt %v", cond, id)
		}
	})

	t.Run("recent window", func(t *testing.T) {
		cfg, err := ConfigureKeyset("recent", id.Hex(), 10)
		if err != nil {
			t.Fatalf("ConfigureKeyset() error = %v", err)
		}
		cond := cfg.KeysetWindow()["_id"].(bson.M)
		if cond["$gt"] != id {
			t.Errorf("window = %v, want $gt %v", cond, id)
		}
	})

	t.Run("bad cursor", func(t *testing.T) {
		if _, err := ConfigureKeyset("recent", "not-an-id", 10); err != ErrBadCursor {
			t.Errorf("error = %v, want ErrBadCursor", err)
		}
	})

	t.Run("zero limit falls back", func(t *testing.T) {
		cfg, _ := ConfigureKeyset("", "", 0)
		if cfg.Limit != DefaultLimit {
			t.Errorf("Limit = %d, want %d", cfg.Limit, DefaultLimit)
		}
	})
}

func TestFromRequest(t *testing.T) {
	id := primitive.NewObjectID()
	r := httptest.NewRequest("GET", "/chat/conversations/x?sort=recent&sortId="+id.Hex()+"&limit=5", nil)

	cfg, err := FromRequest(r)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if cfg.Direction != Recent || cfg.Limit != 5 || cfg.Cursor == nil || *cfg.Cursor != id {
		t.Errorf("FromRequest() = %+v", cfg)
	}
}

func TestFromRequest_PaddedValues(t *testing.T) {
	id := primitive.NewObjectID()
	r := httptest.NewRequest("GET", "/chat/conversations/x?sort=%20recent%20&sortId=%20"+id.Hex()+"%20", nil)

	cfg, err := FromRequest(r)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if cfg.Direction != Recent || cfg.Cursor == nil || *cfg.Cursor != id {
		t.Errorf("FromRequest() = %+v", cfg)
	}
}

func TestApplyToFind(t *testing.T) {
	cfg := KeysetConfig{Direction: Recent, Limit: 7}
	find := options.Find()
	cfg.ApplyToFind(find)

	if find.Limit == nil || *find.Limit != 7 {
		t.Errorf("Limit = %v, want 7", find.Limit)
	}
	sort, ok := find.Sort.(bson.D)
	if !ok || len(sort) != 1 || sort[0].Key != "_id" || sort[0].Value != -1 {
		t.Errorf("Sort = %v, want _id:-1", find.Sort)
	}
}

func TestReverse(t *testing.T) {
	tests := []struct {
		name  string
		input []int
		want  []int
	}{
		{"empty", []int{}, []int{}},
		{"single", []int{1}, []int{1}},
		{"two", []int{1, 2}, []int{2, 1}},
		{"odd", []int{1, 2, 3}, []int{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := append([]int(nil), tt.input...)
			Reverse(rows)
			for i := range rows {
				if rows[i] != tt.want[i] {
					t.Errorf("Reverse() = %v, want %v", rows, tt.want)
					break
				}
			}
		})
	}
}
