// Package sse streams job progress to HTTP clients as Server-Sent Events.
//
// A Hub routes published events to connected clients whose ID matches a
// glob pattern. Client IDs are namespaced by topic, so a subscriber to one
// job registers as "job:<id>:<client>" and the publisher targets
// "job:<id>:*":
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	router.GET("/v1/jobs/:id/events", func(c *gin.Context) {
//	    sse.Serve(hub, c.Writer, c.Request, "job:"+c.Param("id")+":"+uuid.NewString(), sse.ServeOptions{})
//	})
//	hub.Publish("job:"+id+":*", sse.Event{Type: "job", Data: data})
package sse
