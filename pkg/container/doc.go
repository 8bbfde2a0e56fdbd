// Package container is a small named-service registry.
//
// Services are registered under a name with Bind (built on every resolve),
// Singleton (built once) or Instance (already built), and looked up with
// Resolve or the typed helpers:
//
//	c := container.New()
//	c.Instance("logger", log)
//	c.Singleton("email.sender", func(c *container.Container) (any, error) {
//	    return email.NewSESClient(ctx, cfg.SES)
//	})
//
//	sender, err := container.Resolve[email.EmailSender](c, "email.sender")
//
// *Container satisfies email.Resolver, so Service callbacks resolve their
// collaborators from it.
package container
