/*
Package authsdk is a small client for the tabtoken service.

A trusted service holds one basic credential and asks the token service to
mint, refresh and introspect tokens for any tenant it fronts:

	client := authsdk.NewClient("https://tokens.internal", "svc-gateway", secret)

	pair, err := client.Issue(ctx, "tenantA", "alice")
	if errors.Is(err, authsdk.ErrUnknownSubject) {
		// alice is not a subject of tenantA
	}

	info, err := client.Introspect(ctx, "tenantA", pair.AccessToken)
	if err == nil && !info.Active {
		fmt.Println("token rejected:", info.Reason)
	}

	pair, err = client.Refresh(ctx, "tenantA", pair.RefreshToken)

Every failure response decodes into an *APIError. The predefined values in
this package compare equal under errors.Is when status, code and description
match; a rejection by the basic credential gate has Code "unauthorized" and
a description saying why.

The same types are used by the server handlers to write responses, so the
wire format lives in one place.
*/
package authsdk
