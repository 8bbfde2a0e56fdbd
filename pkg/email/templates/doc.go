// Package templates renders email views built with templ.
//
// Views are registered by name on a Registry, which implements the renderer
// the email.Mailer expects:
//
//	reg := templates.NewRegistry().
//	    MustRegister("welcome", func(data map[string]any) templ.Component {
//	        return views.Welcome(data["name"].(string))
//	    })
//
//	mailer, err := email.New(sender, reg)
package templates
