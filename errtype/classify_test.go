package errtype

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyAccessNotConfigured(t *testing.T) {
	cause := errors.New("googleapi: Error 403")
	err := Classify("accessNotConfigured", "my-project", cause)
	want := "the Cloud SQL Admin API is not enabled for project \"my-project\"; enable it at " +
		"https://console.cloud.google.com/apis/api/sqladmin.googleapis.com/overview?project=my-project"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("Classify(accessNotConfigured) = %q, want it to contain %q", err.Error(), want)
	}
	if !strings.Contains(err.Error(), cause.Error()) {
		t.Errorf("Classify(accessNotConfigured) = %q, want it to preserve cause %q", err.Error(), cause.Error())
	}
}

func TestClassifyNotAuthorized(t *testing.T) {
	cause := errors.New("googleapi: Error 403")
	err := Classify("notAuthorized", "my-project", cause)
	want := "the Cloud SQL instance does not exist, or the caller is not authorized " +
		"to access it; verify the instance connection name and the IAM " +
		"permissions for project \"my-project\""
	if !strings.Contains(err.Error(), want) {
		t.Errorf("Classify(notAuthorized) = %q, want it to contain %q", err.Error(), want)
	}
	if !strings.Contains(err.Error(), cause.Error()) {
		t.Errorf("Classify(notAuthorized) = %q, want it to preserve cause %q", err.Error(), cause.Error())
	}
}

func TestClassifyUnknownReasonFallsBackToGenericWrap(t *testing.T) {
	cause := errors.New("googleapi: Error 500")
	err := Classify("somethingUnexpected", "my-project", cause)
	want := "cloud SQL admin API request failed"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("Classify(unknown reason) = %q, want it to contain %q", err.Error(), want)
	}
	if !strings.Contains(err.Error(), cause.Error()) {
		t.Errorf("Classify(unknown reason) = %q, want it to preserve cause %q", err.Error(), cause.Error())
	}
}
