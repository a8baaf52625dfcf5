package socketio

import (
	"context"
	"time"

	"classboard-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
)

// Server wraps the socket.io server. Each authenticated connection joins a
// room named by its user id; emitting to that room is the receiver-side
// filter of the push channel, and the redis adapter carries it across
// instances.
type Server struct {
	io *socket.Server
}

func Init(app *fiber.App, redisClient *redis.Client) *Server {
	options := socket.DefaultServerOptions()
	options.SetServeClient(true)
	options.SetAllowEIO3(true)
	options.SetPingInterval(300 * time.Millisecond)
	options.SetPingTimeout(200 * time.Millisecond)
	options.SetMaxHttpBufferSize(100000000)
	options.SetConnectTimeout(1000 * time.Millisecond)
	options.SetAdapter(&adapter.RedisAdapterBuilder{
		Redis: r_type.NewRedisClient(context.Background(), redisClient),
		Opts:  &adapter.RedisAdapterOptions{},
	})

	io := socket.NewServer(nil, nil)

	io.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		token, auth := client.Conn().Request().Query().Get("token")

		if auth {
			claims, err := utils.CheckAndExtractTokenMetadata(token, "JWT_ACCESS_KEY")

			if err == nil {
				if !claims.Otp {
					client.Join(socket.Room(claims.Id))
					client.SetData(claims)
				}
			}
		}

		next(nil)
	})

	app.Get("/socket.io/", adaptor.HTTPHandler(io.ServeHandler(options)))
	app.Post("/socket.io/", adaptor.HTTPHandler(io.ServeHandler(options)))

	return &Server{io: io}
}

// IO exposes the underlying server for event registration.
func (s *Server) IO() *socket.Server {
	return s.io
}

func (s *Server) Broadcast(event string, message any) {
	s.io.FetchSockets()(func(sockets []*socket.RemoteSocket, _ error) {
		for _, sck := range sockets {
			sck.Emit(event, message)
		}
	})
}

// Emit sends the event to every connection of the given user id.
func (s *Server) Emit(id string, event string, message any) {
	s.io.To(socket.Room(id)).Emit(event, message)
}

func (s *Server) Close() {
	s.io.Close(nil)
}
