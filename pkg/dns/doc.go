/*
Package dns is the cluster-internal resolver: it answers A records for
DNSRecord host names by reading the record and the Service it routes to
straight from the store and returning the Service's ClusterIP, and
forwards anything else upstream (spec.md §4.5 DNSController).
*/
package dns
