// Package confluence implements the page source against the Confluence
// REST API. It speaks to on-premises instances with bearer-token auth,
// expands storage-format bodies, and converts them to plain text before
// handing documents to the core.
package confluence
