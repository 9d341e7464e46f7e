package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"
	// zone names are validated on devices without a zoneinfo database
	_ "time/tzdata"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jitinsharma/sunshine-wear/apimodel"
	"github.com/jitinsharma/sunshine-wear/internal/srv/config"
	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/jitinsharma/sunshine-wear/internal/version"
	"github.com/sirupsen/logrus"
)

// StatusProvider exposes the face state to the API
type StatusProvider interface {
	WeatherStatus() apimodel.WeatherStatus
	DisplayStatus() apimodel.DisplayStatus
}

type Api struct {
	eventChannel chan event.ApiEvent

	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server

	config   *config.ServerConfig
	provider StatusProvider
}

func NewApi(config *config.ServerConfig, provider StatusProvider, metricsHandler http.Handler) *Api {
	api := Api{
		config:       config,
		provider:     provider,
		eventChannel: make(chan event.ApiEvent),
	}

	api.router = mux.NewRouter().StrictSlash(false)

	// Prometheus scraping is not behind the API key
	if metricsHandler != nil {
		api.router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// API Routes
	api.apiRouter = api.router.PathPrefix("/api").Subrouter()
	api.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	// Auth middleware
	api.apiRouter.Use(
		func(handler http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						logrus.Warningf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
						strMessage := fmt.Sprintf("%v", rec)
						GlobalErrorAction(w, strMessage, http.StatusInternalServerError)
					}
				}()

				// Check API Key
				apiKey := r.Header.Get("x-api-key")
				if apiKey != config.ServerParam.ApiParam.ApiKey {
					ErrorStatusAction(w, r, http.StatusForbidden)
					return
				}

				logrus.Debugf("PATH: %s %s", r.Host, r.URL.Path)

				handler.ServeHTTP(w, r)
			})
		})

	// Create server check endpoint
	api.apiRouter.HandleFunc("/is_alive",
		func(w http.ResponseWriter, r *http.Request) {
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("GET")
	api.apiRouter.HandleFunc("/version",
		func(w http.ResponseWriter, r *http.Request) {
			JsonAction(w, map[string]string{"version": version.AppVersion.String()})
		}).Methods("GET")

	api.apiRouter.HandleFunc("/weather",
		func(w http.ResponseWriter, r *http.Request) {
			JsonAction(w, api.provider.WeatherStatus())
		}).Methods("GET")
	api.apiRouter.HandleFunc("/display",
		func(w http.ResponseWriter, r *http.Request) {
			JsonAction(w, api.provider.DisplayStatus())
		}).Methods("GET")

	// Platform event injection
	api.apiRouter.HandleFunc("/event/visibility/{visible}",
		api.boolEventAction("visible", func(visible bool) interface{} {
			return event.VisibilityData{Visible: visible}
		})).Methods("POST")
	api.apiRouter.HandleFunc("/event/ambient/{ambient}",
		api.boolEventAction("ambient", func(ambient bool) interface{} {
			return event.AmbientModeData{Ambient: ambient}
		})).Methods("POST")
	api.apiRouter.HandleFunc("/event/properties/{low_bit_ambient}",
		api.boolEventAction("low_bit_ambient", func(lowBitAmbient bool) interface{} {
			return event.PropertiesData{LowBitAmbient: lowBitAmbient}
		})).Methods("POST")
	api.apiRouter.HandleFunc("/event/tick",
		func(w http.ResponseWriter, r *http.Request) {
			api.sendPlatformEvent(w, r, event.TimeTickData{})
		}).Methods("POST")
	api.apiRouter.HandleFunc("/event/tap",
		func(w http.ResponseWriter, r *http.Request) {
			api.sendPlatformEvent(w, r, event.TapData{})
		}).Methods("POST")
	api.apiRouter.HandleFunc("/event/timezone/{tz_id:.+}",
		func(w http.ResponseWriter, r *http.Request) {
			tzId := mux.Vars(r)["tz_id"]
			if _, err := time.LoadLocation(tzId); err != nil {
				GlobalErrorAction(w, fmt.Sprintf("unknown time zone %s", tzId), http.StatusBadRequest)
				return
			}
			api.sendPlatformEvent(w, r, event.TimezoneData{TzId: tzId})
		}).Methods("POST")

	// Tell the browser that it's OK for JS to communicate with the server
	headersOk := handlers.AllowedHeaders([]string{"Authorization", "x-api-key"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})

	api.server = &http.Server{
		Addr:         ":" + strconv.FormatInt(config.ServerParam.ApiParam.Port, 10),
		Handler:      handlers.CompressHandler(handlers.CORS(originsOk, headersOk, methodsOk)(api.router)),
		ReadTimeout:  time.Second * 240,
		WriteTimeout: time.Second * 240,
		IdleTimeout:  time.Second * 240,
	}

	return &api
}

func (d *Api) Start() {
	logrus.Infof("Start api device on %s", d.server.Addr)

	go func() {
		err := d.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Error(err)
		}
	}()
}

func (d *Api) StopSendingEvent() {
	logrus.Infof("Stop api device")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		logrus.Warnf("Unable to stop api server: %v", err)
	}
}

func (d *Api) EventChannel() chan event.ApiEvent {
	return d.eventChannel
}

// Handler is the complete HTTP handler, middlewares included
func (d *Api) Handler() http.Handler {
	return d.server.Handler
}

func (d *Api) boolEventAction(name string, data func(bool) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := strconv.ParseBool(mux.Vars(r)[name])
		if err != nil {
			wrongParameters := apimodel.WrongParametersErrorMessage
			wrongParameters.SendError(w)
			return
		}
		d.sendPlatformEvent(w, r, data(value))
	}
}

// sendPlatformEvent hands the event to the event loop and waits for it to be handled
func (d *Api) sendPlatformEvent(w http.ResponseWriter, r *http.Request, data interface{}) {
	result := make(chan error, 1)
	select {
	case d.eventChannel <- event.ApiEvent{Result: result, Data: event.ApiEventPlatformData{Event: event.PlatformEvent{Data: data}}}:
	case <-r.Context().Done():
		ErrorStatusAction(w, r, http.StatusServiceUnavailable)
		return
	}

	if err := <-result; err != nil {
		GlobalErrorAction(w, err.Error(), http.StatusForbidden)
		return
	}
	ErrorStatusAction(w, r, http.StatusOK)
}

func JsonAction(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logrus.Warnf("Unable to encode response: %v", err)
	}
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	ErrorMessageAction(w, "", status)
}

func GlobalErrorAction(w http.ResponseWriter, message string, status int) {
	ErrorMessageAction(w, message, status)
}

func ErrorMessageAction(w http.ResponseWriter, title string, status int) {
	apimodel.NewErrorMessage(status, title).SendError(w)
}
