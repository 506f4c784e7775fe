// Package testutils provides helpers for functional tests of HTTP
// applications.
//
// A Kernel wraps the application router and records the last handler error
// and the last validation errors, so a failed status assertion shows why the
// request failed:
//
//	k := testutils.NewKernel(func(r chi.Router) {
//	    r.Post("/users", handler.Create)
//	})
//	content := k.RequestJSON(t, http.StatusCreated, http.MethodPost, "/users", payload, nil)
//
// Response bodies are compared with message builders:
//
//	testutils.AssertContentEquals(t, testutils.NewContentMessage("").
//	    AddField("id").
//	    AddFieldValue("email", "alice@example.com"), content, nil)
//
//	testutils.AssertErrorContentEquals(t,
//	    testutils.NewErrorMessage(testutils.UnprocessableEntity, http.StatusBadRequest),
//	    content)
package testutils
