package middleware

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

type AppUser struct {
	UserID string
}

type App struct {
	DBConn *pgxpool.Pool
	Queue  *amqp091.Channel
	S3     *s3.Client
	APIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(
	db *pgxpool.Pool,
	queue *amqp091.Channel,
	s3Client *s3.Client,
	apiKey string,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			app := &App{
				DBConn: db,
				Queue:  queue,
				S3:     s3Client,
				APIKey: apiKey,
			}
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
