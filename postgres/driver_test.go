package postgres

import "testing"

func TestParseLibpqParams(t *testing.T) {
	params, err := parseLibpqParams("cloudSqlInstance=p:r:i ipTypes='PRIVATE,PSC' dbname=app")
	if err != nil {
		t.Fatalf("parseLibpqParams: %v", err)
	}
	if params["cloudSqlInstance"] != "p:r:i" {
		t.Errorf("cloudSqlInstance = %q", params["cloudSqlInstance"])
	}
	if params["ipTypes"] != "PRIVATE,PSC" {
		t.Errorf("ipTypes = %q", params["ipTypes"])
	}
	if params["dbname"] != "app" {
		t.Errorf("dbname = %q", params["dbname"])
	}
}

func TestParseLibpqParamsIgnoresMalformedFields(t *testing.T) {
	params, err := parseLibpqParams("cloudSqlInstance=p:r:i justaflag")
	if err != nil {
		t.Fatalf("parseLibpqParams: %v", err)
	}
	if len(params) != 1 {
		t.Errorf("params = %v, want only cloudSqlInstance", params)
	}
}
