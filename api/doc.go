// Package api provides the JSON HTTP API over the activitypg gateway.
//
// Every response uses the envelope {data, error{code, message}, meta}.
// Record endpoints require an "Authorization: Bearer <token>" header
// obtained from POST /auth/signin.
//
// # Endpoints
//
// Auth:
//   - POST /auth/signup - Create an account
//   - POST /auth/signin - Issue a session token
//   - POST /auth/signout - Revoke the bearer token
//
// Profile:
//   - GET /profile - Current user's profile
//   - PUT /profile - Set the full name
//
// Notes and todos:
//   - GET /notes - List notes (q, order_by, order_dir, limit, offset)
//   - GET /notes/{id} - Note detail
//   - GET /notes/{id}/html - Note content rendered from markdown
//   - POST /notes, PATCH /notes/{id}, DELETE /notes/{id}
//   - GET /todos ... same shape, with a level field
//
// Photos:
//   - GET /photos - List photos (q, category, order_by, order_dir, limit, offset)
//   - POST /photos - Upload (multipart: name, category, image)
//   - PATCH /photos/{id} - Rename and/or replace the image (multipart)
//   - DELETE /photos/{id}
//   - GET /photos/{id}/reviews, POST /photos/{id}/reviews
//   - PATCH /reviews/{id}, DELETE /reviews/{id}
//
// Other:
//   - GET /blobs/{key...} - Stored image bytes
//   - GET /metrics - Prometheus metrics, when a gatherer is configured
package api
