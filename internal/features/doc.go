// Package features translates raw TOM rows into the feature names and light
// curve layout the ORACLE classifier was trained on.
//
// Provider columns are renamed through StaticKeyMap and TimeSeriesKeyMap, the
// photometry flag is rebuilt from the measured signal-to-noise ratio, and
// saturated observations are removed before anything reaches the model.
package features
