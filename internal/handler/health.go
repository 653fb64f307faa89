package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health returns a health-check handler for load balancers.  With a nil
// db it only reports that the process is up; otherwise the database must
// answer a ping within two seconds.
func Health(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if db == nil {
            return c.String(http.StatusOK, "ok")
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unavailable"})
        }
        return c.String(http.StatusOK, "ok")
    }
}
