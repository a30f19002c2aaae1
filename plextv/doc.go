// Package plextv talks to the plex.tv account API. It loads the signed-in
// account profile, enumerates the servers and devices linked to it, manages
// shared users and webhooks, and opens plex.Server sessions against a
// discovered resource by probing its advertised addresses in parallel.
//
// The package does not perform sign-in flows. It expects an existing
// X-Plex-Token:
//
//	account, err := plextv.NewAccount("your-token", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := account.Resource(ctx, "office-pms")
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv, err := res.Connect(ctx, plextv.PreferAny)
//
// Errors reuse the plex package taxonomy, so errors.Is against
// plex.ErrUnauthorized, plex.ErrNotFound and friends works across both
// packages.
package plextv
