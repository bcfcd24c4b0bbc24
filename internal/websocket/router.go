// internal/websocket/router.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Router maps RPC method names onto the exported methods of app.
type Router struct {
	app     interface{}
	methods map[string]reflect.Method
}

func NewRouter(app interface{}) *Router {
	r := &Router{
		app:     app,
		methods: make(map[string]reflect.Method),
	}

	appType := reflect.TypeOf(app)
	for i := 0; i < appType.NumMethod(); i++ {
		method := appType.Method(i)
		if method.IsExported() {
			r.methods[method.Name] = method
		}
	}

	return r
}

// Methods lists the callable method names.
func (r *Router) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes methodName with params. A leading context.Context parameter
// receives ctx and is not counted against params.
func (r *Router) Call(ctx context.Context, methodName string, params []interface{}) (interface{}, error) {
	method, ok := r.methods[methodName]
	if !ok {
		return nil, fmt.Errorf("method not found: %s", methodName)
	}

	methodType := method.Type
	args := []reflect.Value{reflect.ValueOf(r.app)}
	first := 1 // skip receiver
	if methodType.NumIn() > 1 && methodType.In(1) == contextType {
		args = append(args, reflect.ValueOf(ctx))
		first = 2
	}

	numIn := methodType.NumIn() - first
	if len(params) != numIn {
		return nil, fmt.Errorf("method %s expects %d params, got %d", methodName, numIn, len(params))
	}

	for i, param := range params {
		paramValue, err := convertParam(param, methodType.In(first+i))
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		args = append(args, paramValue)
	}

	return processResults(method.Func.Call(args))
}

// convertParam turns a decoded JSON value into targetType.
func convertParam(param interface{}, targetType reflect.Type) (reflect.Value, error) {
	if param == nil {
		return reflect.Zero(targetType), nil
	}

	paramValue := reflect.ValueOf(param)
	if paramValue.Type().AssignableTo(targetType) {
		return paramValue, nil
	}

	// JSON numbers arrive as float64
	if paramValue.Kind() == reflect.Float64 {
		f := param.(float64)
		switch targetType.Kind() {
		case reflect.Int, reflect.Int64, reflect.Int32:
			return reflect.ValueOf(int64(f)).Convert(targetType), nil
		case reflect.Uint, reflect.Uint64, reflect.Uint32:
			return reflect.ValueOf(uint64(f)).Convert(targetType), nil
		}
	}

	if paramValue.Kind() != reflect.Map && paramValue.Kind() != reflect.Slice &&
		paramValue.Type().ConvertibleTo(targetType) {
		return paramValue.Convert(targetType), nil
	}

	// structs, slices and maps go through a JSON round trip
	data, err := json.Marshal(param)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", param, targetType, err)
	}
	out := reflect.New(targetType)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T to %s: %w", param, targetType, err)
	}
	return out.Elem(), nil
}

func processResults(results []reflect.Value) (interface{}, error) {
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		if results[0].Type().Implements(errorType) {
			if !results[0].IsNil() {
				return nil, results[0].Interface().(error)
			}
			return nil, nil
		}
		return results[0].Interface(), nil
	case 2:
		if !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}
		return results[0].Interface(), nil
	default:
		var result []interface{}
		for i := 0; i < len(results)-1; i++ {
			result = append(result, results[i].Interface())
		}
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return result, nil
	}
}
