package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/contadores"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

func init() {
	// Report fields by their JSON name so clients can map errors to inputs.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails; the
// caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			campo := typeErr.Field
			if i := strings.LastIndex(campo, "."); i >= 0 {
				campo = campo[i+1:]
			}
			if strings.HasPrefix(campo, "contador_") {
				c.JSON(http.StatusUnprocessableEntity, apierror.NewContadorInvalido(campo, "debe ser un entero"))
				return false
			}
			c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{campo: "tipo invalido"}))
			return false
		}
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "JSON invalido"))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "JSON invalido"))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// paramID parses the :id path parameter, answering 400 when malformed.
func paramID(c *gin.Context, nombre string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(nombre))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

func queryBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}

// Clasificar maps service errors to status codes and apierror kinds. The
// detail never carries driver or infrastructure messages.
func Clasificar(err error) (int, *apierror.APIError) {
	var contadorErr *contadores.ErrContadorInvalido
	switch {
	case errors.As(err, &contadorErr):
		return http.StatusUnprocessableEntity, apierror.NewContadorInvalido(contadorErr.Campo, contadorErr.Motivo)
	case errors.Is(err, service.ErrCredenciales):
		return http.StatusUnauthorized, apierror.WithKind(apierror.KindAuthenticationRequired, err.Error())
	case errors.Is(err, service.ErrNoAutorizado):
		return http.StatusForbidden, apierror.WithKind(apierror.KindAuthorizationDenied, "No tiene permisos para realizar esta accion")
	case errors.Is(err, service.ErrNoEncontrado):
		return http.StatusNotFound, apierror.WithKind(apierror.KindNotFound, err.Error())
	case errors.Is(err, service.ErrConflicto), errors.Is(err, service.ErrTransicionInvalida):
		return http.StatusConflict, apierror.WithKind(apierror.KindConflict, err.Error())
	case errors.Is(err, service.ErrDatosInvalidos):
		return http.StatusUnprocessableEntity, apierror.WithKind(apierror.KindValidation, err.Error())
	case errors.Is(err, service.ErrPersistencia):
		return http.StatusInternalServerError, apierror.WithKind(apierror.KindPersistenceFailure, service.ErrPersistencia.Error())
	default:
		return http.StatusInternalServerError, apierror.WithKind(apierror.KindInternal, "Error interno del servidor")
	}
}

// responderError answers with the classified error and attaches err to the
// context, where middleware.ErrorHandler logs it with the request id.
func responderError(c *gin.Context, err error) {
	status, body := Clasificar(err)
	_ = c.Error(err)
	c.JSON(status, body)
}
