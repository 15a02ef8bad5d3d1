// Package engagement provides an HTTP client for the engagement backend.
//
// # Overview
//
// The backend stores, per engagement, the observation log written by a
// discovery agent: an ordered list of pages, each with the HTTP exchanges
// recorded on it. Scout reads that log to drive the dashboard and, in mock
// mode, writes to it.
//
// # Endpoints
//
//	GET  /health                     {"status":"healthy"}
//	POST /engagement/                create an engagement
//	GET  /engagement/{id}            fetch an engagement record
//	GET  /engagement/{id}/page-data  {"page_data":[...]}
//	POST /engagement/{id}/page-data  merge {"agent_id", "delta"}
//
// # Client Usage
//
//	client, err := engagement.NewClient("http://127.0.0.1:8000")
//	if err != nil {
//		return err
//	}
//	snap, err := client.FetchPageData(ctx, engagementID)
//
// Page data bodies are parsed with observe.FromJSON, so a malformed body
// yields an empty snapshot rather than an error. Responses with status >= 400
// become *APIError; its message is the backend's "detail" field when
// present, otherwise "api <path> returned status <code>".
//
// Requests time out after 5 seconds.
package engagement
