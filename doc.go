// Package activitypg is a notes, todos and photo review service backed by
// PostgreSQL.
//
// A Client wires one database driver to the services that sit on top of it:
// authentication, the remote data gateway, change notifications, metrics and
// background maintenance. Clients of the gateway page through lists with the
// listing package, debounce search input with the search package, and keep
// unsaved form input with the draft package.
//
// Several servers may share one database. They elect a leader through a
// lease row, and only the leader removes expired sessions.
//
// # Quick Start
//
//	pool, _ := pgxpool.New(ctx, connString)
//	drv := pgxv5.New(pool)
//	_ = drv.Migrate(ctx)
//
//	client, err := activitypg.NewClient(drv, &activitypg.ClientConfig{
//	    Logger:     slog.Default(),
//	    Registerer: prometheus.DefaultRegisterer,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop(ctx)
//
//	http.ListenAndServe(":8080", client.Handler(nil))
//
// # Gateway calls
//
// Gateway calls run as the user carried by the context:
//
//	user, _ := client.Auth().Authenticate(ctx, token)
//	ctx = auth.WithUser(ctx, user)
//	notes, _ := client.Gateway().Notes.ListPage(ctx, listing.Query{Limit: 10})
//
// Calls join a caller's transaction when the context carries one:
//
//	tx, _ := pool.Begin(ctx)
//	note, _ := client.Gateway().Notes.Create(client.WithTx(ctx, tx), in)
//	_ = tx.Commit(ctx)
//
// # Sessions
//
// Terminal and embedded clients track the signed-in user with a session
// Provider:
//
//	provider := client.NewSessionProvider(drafts)
//	_ = provider.Init(ctx, storedToken)
//	unsubscribe := provider.Subscribe(func(s session.State) { ... })
package activitypg
