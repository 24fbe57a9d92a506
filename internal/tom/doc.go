// Package tom is a thin client for the DESC TOM portal.
//
// The TOM is a Django site: logging in means fetching the login page for a
// csrftoken cookie, posting credentials with that token, and then echoing the
// token back in an X-CSRFToken header on every later request. Client hides
// those steps; Request/Get/Post/Put are otherwise plain HTTP calls relative to
// the portal base URL.
//
// On top of the raw client the package offers typed helpers for the two
// endpoints the classifier needs (elasticc2/gethottransients and
// db/runsqlquery) and a Loader that turns a hot-transient listing into raw
// per-object records ready for feature assembly.
package tom
