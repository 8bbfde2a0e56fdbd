// Package sesmailer wires an email.Mailer into a container.
//
//	c := container.New()
//	sender, err := sesmailer.NewSender(ctx, cfg)
//	c.Instance(sesmailer.SenderService, sender)
//	c.Instance(sesmailer.RendererService, registry)
//	c.Instance(sesmailer.EnqueuerService, enqueuer)
//	sesmailer.Register(c, cfg)
//
//	mailer, err := sesmailer.Mailer(c)
//
// The mailer is built on first resolve with the configured sender, pretend
// mode and charset, and with the container itself as the lookup for
// Service callbacks.
package sesmailer
