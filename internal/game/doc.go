// Package game adapts a majiang server game to an mjai agent.
//
// A Session consumes decoded server messages one at a time. Each message
// updates the live Round and is translated into an ordered batch of mjai
// events, which is handed to the Agent in a single call. The Agent's action
// is encoded back into the server's compact notation as a majiang.Reply.
//
// # Basic Usage
//
//	s := game.NewSession(agent, logger)
//	for msg := range inbound {
//	    env, err := majiang.Decode(msg)
//	    ...
//	    reply, err := s.Handle(ctx, env)
//	    if err != nil {
//	        // integrity violations are fatal for the session
//	    }
//	    if reply != nil {
//	        send(reply)
//	    }
//	}
//
// Sessions are not safe for concurrent use. The caller must deliver messages
// for one session from a single goroutine.
package game
