package integration

import (
	"fmt"
	"time"
)

// AdminKey is the operator key configured on the test server
const AdminKey = "integration-admin-key"

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (username, email, password string) {
	ts := time.Now().UnixNano()
	username = fmt.Sprintf("user_%d_%s", ts%1_000_000_000, suffix)
	email = username + "@example.com"
	password = "TestPassword123!"
	return
}
