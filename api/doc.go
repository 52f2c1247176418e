// Package api exposes the monitor over HTTP using a forge router.
//
// Every response is a JSON envelope:
//
//	{"success": true, "data": {...}, "message": "Job released."}
//	{"success": false, "message": "Job not found.", "error": "vigil: job not found"}
//
// Unknown backends and jobs map to 404, an invalid limit to 400 and adapter
// failures to 502. Authentication is left to the host's forge middleware.
package api
