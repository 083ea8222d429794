package validator

import (
	"testing"
)

type enqueueBody struct {
	SpaceURL    string `json:"space_url" validate:"required,url"`
	Kind        string `json:"kind" validate:"required,oneof=audio video transcript"`
	NotifyEmail string `json:"notify_email" validate:"omitempty,email"`
}

func TestValidateStructValid(t *testing.T) {
	body := &enqueueBody{
		SpaceURL: "https://x.com/i/spaces/1vOxwdqjqVYKB",
		Kind:     "audio",
	}
	errs := ValidateStruct(body)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateStructRequired(t *testing.T) {
	errs := ValidateStruct(&enqueueBody{Kind: "audio"})
	if msg, ok := errs["space_url"]; !ok {
		t.Fatalf("expected error keyed by json tag, got %v", errs)
	} else if msg != "The field 'space_url' is required." {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestValidateStructOneOf(t *testing.T) {
	body := &enqueueBody{
		SpaceURL: "https://x.com/i/spaces/1vOxwdqjqVYKB",
		Kind:     "podcast",
	}
	errs := ValidateStruct(body)
	if _, ok := errs["kind"]; !ok {
		t.Fatalf("expected kind error, got %v", errs)
	}
}

func TestValidateStructEmail(t *testing.T) {
	body := &enqueueBody{
		SpaceURL:    "https://x.com/i/spaces/1vOxwdqjqVYKB",
		Kind:        "audio",
		NotifyEmail: "not-an-email",
	}
	errs := ValidateStruct(body)
	if _, ok := errs["notify_email"]; !ok {
		t.Fatalf("expected notify_email error, got %v", errs)
	}
}
